package tracker

import (
	"context"

	"jotnar/internal/tools"
)

// Register wires every tracker tool into reg under the spec's tool names.
func Register(reg *tools.Registry, c *Client) {
	reg.Register(tools.TypedTool("get_issue_details", func(ctx context.Context, in struct {
		Key string `json:"key"`
	}) (Issue, error) {
		return c.GetIssueDetails(ctx, in.Key)
	}))

	reg.Register(tools.TypedTool("set_issue_fields", func(ctx context.Context, in SetIssueFieldsInput) (struct{}, error) {
		return struct{}{}, c.SetIssueFields(ctx, in)
	}))

	reg.Register(tools.TypedTool("add_issue_comment", func(ctx context.Context, in struct {
		Key  string `json:"key"`
		Text string `json:"text"`
	}) (struct{}, error) {
		return struct{}{}, c.AddIssueComment(ctx, in.Key, in.Text)
	}))

	reg.Register(tools.TypedTool("change_issue_status", func(ctx context.Context, in struct {
		Key    string `json:"key"`
		Status string `json:"status"`
	}) (struct{}, error) {
		return struct{}{}, c.ChangeIssueStatus(ctx, in.Key, in.Status)
	}))

	reg.Register(tools.TypedTool("edit_issue_labels", func(ctx context.Context, in struct {
		Key    string   `json:"key"`
		Labels []string `json:"labels"`
	}) (struct{}, error) {
		return struct{}{}, c.EditIssueLabels(ctx, in.Key, in.Labels)
	}))

	reg.Register(tools.TypedTool("verify_issue_author", func(ctx context.Context, in struct {
		Key                 string   `json:"key"`
		AllowedReporterIDs []string `json:"allowed_reporter_ids"`
	}) (bool, error) {
		return c.VerifyIssueAuthor(ctx, in.Key, in.AllowedReporterIDs)
	}))

	reg.Register(tools.TypedTool("check_cve_triage_eligibility", func(ctx context.Context, in struct {
		Key string `json:"key"`
	}) (CVEEligibilityResult, error) {
		return c.CheckCVETriageEligibility(ctx, in.Key)
	}))
}
