package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophdrive/internal/client/client"
	"github.com/dmitrijs2005/gophdrive/internal/client/models"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
)

// GroupService manages the groups owned by the current user.
type GroupService interface {
	List(ctx context.Context) ([]models.Group, error)
	Create(ctx context.Context, name string) (models.Group, error)
	Rename(ctx context.Context, groupID int64, name string) (models.Group, error)
	Delete(ctx context.Context, groupID int64) error
	Members(ctx context.Context, groupID int64) ([]models.User, error)
	AddMember(ctx context.Context, groupID, userID int64) error
	RemoveMember(ctx context.Context, groupID, userID int64) error
}

type groupService struct {
	api client.Groups
	log logging.Logger
}

func NewGroupService(api client.Groups, log logging.Logger) GroupService {
	return &groupService{api: api, log: log}
}

func (g *groupService) List(ctx context.Context) ([]models.Group, error) {
	return g.api.ListGroups(ctx)
}

func (g *groupService) Create(ctx context.Context, name string) (models.Group, error) {
	if err := validateName(name); err != nil {
		return models.Group{}, err
	}
	group, err := g.api.CreateGroup(ctx, name)
	if err != nil {
		return models.Group{}, fmt.Errorf("failed to create group: %w", err)
	}
	g.log.Info(ctx, "group created", "group_id", group.ID, "name", group.Name)
	return group, nil
}

func (g *groupService) Rename(ctx context.Context, groupID int64, name string) (models.Group, error) {
	if err := validateName(name); err != nil {
		return models.Group{}, err
	}
	group, err := g.api.RenameGroup(ctx, groupID, name)
	if err != nil {
		return models.Group{}, fmt.Errorf("failed to rename group: %w", err)
	}
	return group, nil
}

func (g *groupService) Delete(ctx context.Context, groupID int64) error {
	if err := g.api.DeleteGroup(ctx, groupID); err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	g.log.Info(ctx, "group deleted", "group_id", groupID)
	return nil
}

func (g *groupService) Members(ctx context.Context, groupID int64) ([]models.User, error) {
	return g.api.Members(ctx, groupID)
}

func (g *groupService) AddMember(ctx context.Context, groupID, userID int64) error {
	if err := g.api.AddMember(ctx, groupID, userID); err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

func (g *groupService) RemoveMember(ctx context.Context, groupID, userID int64) error {
	if err := g.api.RemoveMember(ctx, groupID, userID); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	return nil
}
