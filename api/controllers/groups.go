package controllers

import (
	"net/http"
	"time"

	"github.com/verdana-market/verdana-backend/api/responses"
	"github.com/verdana-market/verdana-backend/api/validators"
	"github.com/verdana-market/verdana-backend/internal/groups"
	"github.com/verdana-market/verdana-backend/pkg/enums"
	pkgerrors "github.com/verdana-market/verdana-backend/pkg/errors"
	"github.com/verdana-market/verdana-backend/pkg/logger"
)

type createGroupRequest struct {
	Name        string  `json:"name" validate:"required,max=120"`
	Description *string `json:"description,omitempty"`
	MaxMembers  int     `json:"max_members,omitempty" validate:"omitempty,min=2,max=500"`
}

type changeRoleRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	Role   string `json:"role" validate:"required"`
}

type startChallengeRequest struct {
	Name         string  `json:"name" validate:"required,max=120"`
	Description  *string `json:"description,omitempty"`
	TargetMetric string  `json:"target_metric" validate:"required"`
	TargetValue  int64   `json:"target_value" validate:"required,min=1"`
	RewardPoints int64   `json:"reward_points" validate:"required,min=1"`
	Deadline     string  `json:"deadline" validate:"required"`
}

// CreateGroup opens a new group with the caller as its owner.
func CreateGroup(svc groups.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req createGroupRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		group, err := svc.CreateGroup(r.Context(), userID, groups.CreateGroupInput{
			Name:        validators.SanitizeString(req.Name, 120),
			Description: req.Description,
			MaxMembers:  req.MaxMembers,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, group)
	}
}

// GetGroup returns one group by ID.
func GetGroup(svc groups.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groupID, err := pathUUID(r, "groupID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		group, err := svc.GetGroup(r.Context(), groupID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, group)
	}
}

// JoinGroup adds the caller to the group as a member.
func JoinGroup(svc groups.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		groupID, err := pathUUID(r, "groupID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		membership, err := svc.JoinGroup(r.Context(), groupID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, membership)
	}
}

// LeaveGroup removes the caller from the group.
func LeaveGroup(svc groups.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		groupID, err := pathUUID(r, "groupID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.LeaveGroup(r.Context(), groupID, userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"left": true})
	}
}

// ChangeMemberRole promotes or demotes another member. Only owners and
// admins may call it.
func ChangeMemberRole(svc groups.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		groupID, err := pathUUID(r, "groupID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req changeRoleRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		targetID, err := uuidFromString(req.UserID, "user_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		role, err := enums.ParseMemberRole(req.Role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role"))
			return
		}

		if err := svc.ChangeRole(r.Context(), groupID, actorID, targetID, role); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"user_id": targetID, "role": role})
	}
}

// StartChallenge opens a new challenge on the group.
func StartChallenge(svc groups.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		groupID, err := pathUUID(r, "groupID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req startChallengeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		metric, err := enums.ParseChallengeTargetMetric(req.TargetMetric)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid target_metric"))
			return
		}
		deadline, err := time.Parse(time.RFC3339, req.Deadline)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "deadline must be RFC 3339"))
			return
		}

		challenge, err := svc.StartChallenge(r.Context(), groupID, userID, groups.StartChallengeInput{
			Name:         validators.SanitizeString(req.Name, 120),
			Description:  req.Description,
			TargetMetric: metric,
			TargetValue:  req.TargetValue,
			RewardPoints: req.RewardPoints,
			Deadline:     deadline,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, challenge)
	}
}

// GroupLeaderboard ranks active members by contributed points.
func GroupLeaderboard(svc groups.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groupID, err := pathUUID(r, "groupID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.Leaderboard(r.Context(), groupID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"leaderboard": rows})
	}
}

// GroupActivityFeed pages through the group's activity log, newest first.
func GroupActivityFeed(svc groups.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groupID, err := pathUUID(r, "groupID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, next, err := svc.ActivityFeed(r.Context(), groupID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"activities":  rows,
			"next_cursor": next,
		})
	}
}
