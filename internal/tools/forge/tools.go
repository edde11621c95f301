package forge

import (
	"context"

	"jotnar/internal/tools"
)

// Register wires every forge tool into reg under the spec's tool names.
func Register(reg *tools.Registry, c *Client) {
	reg.Register(tools.TypedTool("fork_repository", func(ctx context.Context, in struct {
		RepoURL string `json:"repo_url"`
	}) (struct {
		ForkURL string `json:"fork_url"`
	}, error) {
		url, err := c.ForkRepository(ctx, in.RepoURL)
		return struct {
			ForkURL string `json:"fork_url"`
		}{url}, err
	}))

	reg.Register(tools.TypedTool("clone_repository", func(ctx context.Context, in struct {
		RepoURL string `json:"repo_url"`
		DestDir string `json:"dest_dir"`
	}) (struct{}, error) {
		return struct{}{}, c.CloneRepository(ctx, in.RepoURL, in.DestDir)
	}))

	reg.Register(tools.TypedTool("push_to_remote_repository", func(ctx context.Context, in struct {
		Dir    string `json:"dir"`
		Branch string `json:"branch"`
	}) (struct{}, error) {
		return struct{}{}, c.PushToRemoteRepository(ctx, in.Dir, in.Branch)
	}))

	reg.Register(tools.TypedTool("open_merge_request", func(ctx context.Context, in OpenMergeRequestInput) (struct {
		URL string `json:"url"`
	}, error) {
		url, err := c.OpenMergeRequest(ctx, in)
		return struct {
			URL string `json:"url"`
		}{url}, err
	}))

	reg.Register(tools.TypedTool("get_internal_rhel_branches", func(ctx context.Context, in struct {
		RepoURL string `json:"repo_url"`
	}) ([]string, error) {
		return c.GetInternalRHELBranches(ctx, in.RepoURL)
	}))
}
