package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophdrive/internal/client/models"
	"github.com/dmitrijs2005/gophdrive/internal/client/navigation"
	"github.com/dmitrijs2005/gophdrive/internal/client/objkey"
)

// List prints the children of the current folder, folders marked with a
// trailing slash.
func (a *App) List(_ context.Context, _ []string) error {
	view := a.browser.View()
	nav := a.browser.Navigator()

	if term := nav.Search(); term != "" {
		printlnFn(fmt.Sprintf("Search: %q", term))
	}
	if len(view.Items) == 0 {
		printlnFn("(empty)")
	}
	for _, obj := range view.Items {
		printlnFn(formatRow(obj))
	}
	if n := len(view.Orphans); n > 0 {
		printlnFn(fmt.Sprintf("(%d object(s) below folders without a marker are hidden)", n))
	}
	return nil
}

func formatRow(obj models.FileObject) string {
	name := obj.Name()
	if obj.IsFolder() {
		return fmt.Sprintf("%-8s %10s  %-16s  %s/", objkey.Classify(obj.ObjectKey), "-", objkey.FormatTimestamp(obj.LastModified), name)
	}
	row := fmt.Sprintf("%-8s %10s  %-16s  %s", objkey.Classify(obj.ObjectKey), objkey.FormatSize(obj.Size),
		objkey.FormatTimestamp(obj.LastModified), name)
	if len(obj.Sharings) > 0 {
		row += fmt.Sprintf("  [shared x%d]", len(obj.Sharings))
	}
	return row
}

// Cd changes the current folder. Without an argument it goes to the root.
func (a *App) Cd(ctx context.Context, args []string) error {
	path := navigation.InputPrefix
	if len(args) > 0 {
		path = args[0]
	}
	if path == ".." {
		return a.Up(ctx, nil)
	}
	if err := a.browser.ChangeDir(path); err != nil {
		return err
	}
	return a.List(ctx, nil)
}

func (a *App) Open(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("open <folder>")
	}
	if err := a.browser.Open(args[0]); err != nil {
		return err
	}
	return a.List(ctx, nil)
}

func (a *App) Up(ctx context.Context, _ []string) error {
	a.browser.Up()
	return a.List(ctx, nil)
}

// Search filters the listing by a substring of the key. Without an
// argument the filter is cleared.
func (a *App) Search(ctx context.Context, args []string) error {
	a.browser.Navigator().SetSearch(strings.Join(args, " "))
	return a.List(ctx, nil)
}

// Tab switches between own files and the two shared views.
func (a *App) Tab(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("tab my|to|by")
	}
	var tab navigation.Tab
	switch args[0] {
	case "my":
		tab = navigation.TabMyFiles
	case "to":
		tab = navigation.TabSharedToMe
	case "by":
		tab = navigation.TabSharedByMe
	default:
		return usageError("tab my|to|by")
	}
	if err := a.browser.SwitchTab(ctx, tab); err != nil {
		return err
	}
	return a.List(ctx, nil)
}

func (a *App) Refresh(ctx context.Context, _ []string) error {
	if err := a.browser.Load(ctx); err != nil {
		return err
	}
	return a.List(ctx, nil)
}

func (a *App) Mkdir(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("mkdir <name>")
	}
	key, err := a.browser.CreateFolder(ctx, args[0], a.confirm)
	if err != nil {
		return err
	}
	printlnFn("Created", key)
	return nil
}

// Remove deletes an object after confirmation.
func (a *App) Remove(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("rm <name>")
	}
	obj, err := a.browser.Lookup(args[0])
	if err != nil {
		return err
	}

	q := fmt.Sprintf("Delete %s?", obj.ObjectKey)
	if obj.IsFolder() {
		q = fmt.Sprintf("Delete folder %s and everything in it?", obj.ObjectKey)
	}
	if !a.confirm(q) {
		printlnFn("Canceled")
		return nil
	}

	if err := a.browser.Delete(ctx, obj); err != nil {
		return err
	}
	printlnFn("Deleted", obj.ObjectKey)
	return nil
}

func (a *App) Move(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usageError("mv <name> <folder>")
	}
	obj, err := a.browser.Lookup(args[0])
	if err != nil {
		return err
	}
	target, err := a.browser.Lookup(args[1])
	if err != nil {
		return err
	}
	if err := a.browser.Move(ctx, obj, target); err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("Moved %s to %s", obj.Name(), target.ObjectKey))
	return nil
}

func (a *App) Rename(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usageError("rename <name> <new name>")
	}
	obj, err := a.browser.Lookup(args[0])
	if err != nil {
		return err
	}
	if err := a.browser.Rename(ctx, obj, args[1]); err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("Renamed %s to %s", obj.Name(), args[1]))
	return nil
}

// Info prints the details of one object, including its sharing records.
func (a *App) Info(_ context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("info <name>")
	}
	obj, err := a.browser.Lookup(args[0])
	if err != nil {
		return err
	}

	printlnFn("Key:     ", obj.ObjectKey)
	printlnFn("Type:    ", objkey.Classify(obj.ObjectKey))
	if !obj.IsFolder() {
		printlnFn("Size:    ", objkey.FormatSize(obj.Size))
	}
	if obj.LastModified != "" {
		printlnFn("Modified:", objkey.FormatTimestamp(obj.LastModified))
	}
	if obj.ETag != "" {
		printlnFn("ETag:    ", obj.ETag)
	}
	if obj.StorageClass != "" {
		printlnFn("Storage: ", obj.StorageClass)
	}
	for _, s := range obj.Sharings {
		printlnFn(formatSharing(s))
	}
	return nil
}

func formatSharing(s models.FileSharing) string {
	from := s.SharedByUsername
	if from == "" {
		from = fmt.Sprintf("user #%d", s.SharedByUserID)
	}

	var to string
	switch {
	case s.SharedToGroupID != nil:
		to = fmt.Sprintf("group #%d", *s.SharedToGroupID)
	case s.SharedToUsername != "":
		to = s.SharedToUsername
	case s.SharedToUserID != nil:
		to = fmt.Sprintf("user #%d", *s.SharedToUserID)
	default:
		to = "?"
	}
	return fmt.Sprintf("Share #%d: %s -> %s", s.ID, from, to)
}
