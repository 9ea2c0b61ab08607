package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/gophdrive/internal/client/models"
)

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, s := range args {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", s)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Share grants an object to users or groups by id.
func (a *App) Share(ctx context.Context, args []string) error {
	const usage = "share <name> user|group <ids...>"
	if len(args) < 3 {
		return usageError(usage)
	}

	var recipient models.RecipientType
	switch args[1] {
	case "user":
		recipient = models.RecipientUser
	case "group":
		recipient = models.RecipientGroup
	default:
		return usageError(usage)
	}

	ids, err := parseIDs(args[2:])
	if err != nil {
		return err
	}
	obj, err := a.browser.Lookup(args[0])
	if err != nil {
		return err
	}

	shareErr := a.sharing.Share(ctx, obj.ObjectKey, recipient, ids)
	if err := a.browser.Load(ctx); err != nil && shareErr == nil {
		return err
	}
	if shareErr != nil {
		return shareErr
	}
	printlnFn("Shared", obj.ObjectKey)
	return nil
}

// Unshare revokes one grant of an object. See "info" for share ids.
func (a *App) Unshare(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usageError("unshare <name> <shareId>")
	}
	ids, err := parseIDs(args[1:])
	if err != nil {
		return err
	}
	obj, err := a.browser.Lookup(args[0])
	if err != nil {
		return err
	}

	if err := a.sharing.Unshare(ctx, obj, ids[0], a.confirm); err != nil {
		return err
	}
	printlnFn("Unshared", obj.ObjectKey)
	return a.browser.Load(ctx)
}

// Users finds users by the start of their name.
func (a *App) Users(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("users <prefix>")
	}
	users, err := a.sharing.SearchUsers(ctx, args[0])
	if err != nil {
		return err
	}
	printUsers(users)
	return nil
}

func printUsers(users []models.User) {
	if len(users) == 0 {
		printlnFn("No users")
	}
	for _, u := range users {
		printlnFn(fmt.Sprintf("%6d  %s", u.ID, u.Username))
	}
}

func (a *App) Groups(ctx context.Context, _ []string) error {
	groups, err := a.groups.List(ctx)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		printlnFn("No groups")
	}
	for _, g := range groups {
		printlnFn(fmt.Sprintf("%6d  %s", g.ID, g.Name))
	}
	return nil
}

const groupUsage = "group create <name> | rename <id> <name> | delete <id> | members <id> | add <id> <userId> | remove <id> <userId>"

// Group manages one group. The subcommand is the first argument.
func (a *App) Group(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usageError(groupUsage)
	}
	sub, rest := args[0], args[1:]

	if sub == "create" {
		if len(rest) != 1 {
			return usageError(groupUsage)
		}
		g, err := a.groups.Create(ctx, rest[0])
		if err != nil {
			return err
		}
		printlnFn(fmt.Sprintf("Created group %s (%d)", g.Name, g.ID))
		return nil
	}

	var want int
	switch sub {
	case "delete", "members":
		want = 1
	case "rename", "add", "remove":
		want = 2
	default:
		return usageError(groupUsage)
	}
	if len(rest) != want {
		return usageError(groupUsage)
	}

	ids, err := parseIDs(rest[:1])
	if err != nil {
		return err
	}
	groupID := ids[0]

	switch sub {
	case "rename":
		g, err := a.groups.Rename(ctx, groupID, rest[1])
		if err != nil {
			return err
		}
		printlnFn("Renamed group to", g.Name)
	case "delete":
		if !a.confirm(fmt.Sprintf("Delete group %d?", groupID)) {
			printlnFn("Canceled")
			return nil
		}
		if err := a.groups.Delete(ctx, groupID); err != nil {
			return err
		}
		printlnFn("Deleted group", groupID)
	case "members":
		users, err := a.groups.Members(ctx, groupID)
		if err != nil {
			return err
		}
		printUsers(users)
	case "add", "remove":
		user, err := parseIDs(rest[1:])
		if err != nil {
			return err
		}
		if sub == "add" {
			err = a.groups.AddMember(ctx, groupID, user[0])
		} else {
			err = a.groups.RemoveMember(ctx, groupID, user[0])
		}
		if err != nil {
			return err
		}
		printlnFn("Done")
	}
	return nil
}
