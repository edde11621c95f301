package lookaside

import (
	"context"

	"jotnar/internal/tools"
)

// Register wires the lookaside tool family into reg.
func Register(reg *tools.Registry, c *Client) {
	reg.Register(tools.TypedTool("download_sources", func(ctx context.Context, in struct {
		Package  string `json:"package"`
		Filename string `json:"filename"`
		DestDir  string `json:"dest_dir"`
	}) (struct {
		Path string `json:"path"`
	}, error) {
		path, err := c.DownloadSources(ctx, in.Package, in.Filename, in.DestDir)
		return struct {
			Path string `json:"path"`
		}{path}, err
	}))

	reg.Register(tools.TypedTool("upload_sources", func(ctx context.Context, in struct {
		Package  string `json:"package"`
		FilePath string `json:"file_path"`
	}) (struct{}, error) {
		return struct{}{}, c.UploadSources(ctx, in.Package, in.FilePath)
	}))
}
