package builder

import (
	"context"

	"jotnar/internal/tools"
)

// Register wires the builder tool family into reg.
func Register(reg *tools.Registry, c *Client) {
	reg.Register(tools.TypedTool("build_package", func(ctx context.Context, in BuildPackageInput) (BuildResult, error) {
		return c.BuildPackage(ctx, in)
	}))

	reg.Register(tools.TypedTool("download_artifacts", func(ctx context.Context, in struct {
		BuildID string `json:"build_id"`
		DestDir string `json:"dest_dir"`
	}) ([]string, error) {
		return c.DownloadArtifacts(ctx, in.BuildID, in.DestDir)
	}))
}
