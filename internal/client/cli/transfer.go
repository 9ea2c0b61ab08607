package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophdrive/internal/client/objkey"
	"github.com/dmitrijs2005/gophdrive/internal/client/upload"
	"github.com/dmitrijs2005/gophdrive/internal/common"
)

// Upload starts background uploads of local files into the current folder.
// Progress is shown by "uploads"; completion is reported asynchronously.
func (a *App) Upload(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("upload <paths...>")
	}
	started, err := a.browser.Upload(ctx, args, a.confirm)
	if errors.Is(err, common.ErrDeclined) {
		printlnFn("Nothing to upload")
		return nil
	}
	for _, st := range started {
		printlnFn(fmt.Sprintf("Uploading %s (%s) id=%s", st.Key, objkey.FormatSize(st.Size), st.ID))
	}
	return err
}

// Uploads prints the upload sessions of this run.
func (a *App) Uploads(_ context.Context, _ []string) error {
	sessions := a.browser.Uploads()
	if len(sessions) == 0 {
		printlnFn("No uploads")
		return nil
	}
	for _, st := range sessions {
		printlnFn(formatUpload(st))
	}
	return nil
}

func formatUpload(st upload.Status) string {
	line := fmt.Sprintf("%s  %-9s %3d%%  %s/%s  %s", st.ID, st.State, st.Percent,
		objkey.FormatSize(st.Uploaded), objkey.FormatSize(st.Size), st.Key)
	if st.Err != nil {
		line += "  (" + st.Err.Error() + ")"
	}
	return line
}

func (a *App) Pause(_ context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("pause <id>")
	}
	return a.browser.PauseUpload(args[0])
}

func (a *App) Resume(_ context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("resume <id>")
	}
	return a.browser.ResumeUpload(args[0])
}

func (a *App) Cancel(_ context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("cancel <id>")
	}
	return a.browser.CancelUpload(args[0])
}

// Download saves a file into the configured download directory.
func (a *App) Download(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("download <name>")
	}
	obj, err := a.browser.Lookup(args[0])
	if err != nil {
		return err
	}
	path, err := a.browser.Download(ctx, obj, a.config.DownloadDir)
	if err != nil {
		return err
	}
	printlnFn("Saved to", path)
	return nil
}

// Link prints a temporary download URL of a file.
func (a *App) Link(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("link <name>")
	}
	obj, err := a.browser.Lookup(args[0])
	if err != nil {
		return err
	}
	url, err := a.browser.Link(ctx, obj)
	if err != nil {
		return err
	}
	printlnFn(url)
	return nil
}
