package authz

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	casbinmodel "github.com/casbin/casbin/v2/model"

	appErrors "github.com/unclebandit/campaignhq-backend/internal/errors"
	"github.com/unclebandit/campaignhq-backend/internal/model"
)

type Action string

const (
	ActCreate         Action = "create"
	ActEdit           Action = "edit"
	ActSubmit         Action = "submit"
	ActResubmit       Action = "resubmit"
	ActVersion        Action = "version"
	ActApprove        Action = "approve"
	ActReject         Action = "reject"
	ActRequestChanges Action = "request-changes"
	ActSchedule       Action = "schedule"
	ActPublish        Action = "publish"
	ActArchive        Action = "archive"
	ActDeleteAny      Action = "delete-any"
	ActManageCampaign Action = "manage-campaign"
)

const rbacModel = `
[request_definition]
r = sub, act

[policy_definition]
p = sub, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.act == p.act
`

var (
	everyone   = []model.Role{model.RoleOwner, model.RoleAdmin, model.RoleManager, model.RoleStaff, model.RoleVolunteer}
	approvers  = []model.Role{model.RoleOwner, model.RoleAdmin, model.RoleManager}
	publishers = []model.Role{model.RoleOwner, model.RoleAdmin, model.RoleManager, model.RoleStaff}
	admins     = []model.Role{model.RoleOwner, model.RoleAdmin}
)

// Authorizer answers whether a campaign role may perform an action on a message.
type Authorizer struct {
	enforcer *casbin.Enforcer
}

// New builds the role policy in memory.
func New() (*Authorizer, error) {
	m, err := casbinmodel.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("authz model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("authz enforcer: %w", err)
	}

	grants := map[Action][]model.Role{
		ActCreate:         everyone,
		ActEdit:           everyone,
		ActSubmit:         everyone,
		ActResubmit:       everyone,
		ActVersion:        everyone,
		ActApprove:        approvers,
		ActReject:         approvers,
		ActRequestChanges: approvers,
		ActSchedule:       publishers,
		ActPublish:        publishers,
		ActArchive:        publishers,
		ActDeleteAny:      admins,
		ActManageCampaign: admins,
	}
	for act, roles := range grants {
		for _, role := range roles {
			if _, err := e.AddPolicy(string(role), string(act)); err != nil {
				return nil, fmt.Errorf("authz policy %s/%s: %w", role, act, err)
			}
		}
	}
	return &Authorizer{enforcer: e}, nil
}

// Check returns ErrForbidden when the actor's role is not granted the action.
func (a *Authorizer) Check(actor model.Actor, act Action) error {
	ok, err := a.enforcer.Enforce(string(actor.Role), string(act))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s may not %s: %w", actor, act, appErrors.ErrForbidden)
	}
	return nil
}

// CanDeleteDraft lets authors remove their own drafts; anyone else needs delete-any.
func (a *Authorizer) CanDeleteDraft(actor model.Actor, authorID string) error {
	if actor.ID != "" && actor.ID == authorID {
		return nil
	}
	return a.Check(actor, ActDeleteAny)
}
