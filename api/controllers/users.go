package controllers

import (
	"errors"
	"net/http"

	"gorm.io/gorm"

	"github.com/verdana-market/verdana-backend/api/responses"
	"github.com/verdana-market/verdana-backend/api/validators"
	"github.com/verdana-market/verdana-backend/internal/users"
	"github.com/verdana-market/verdana-backend/pkg/db"
	pkgerrors "github.com/verdana-market/verdana-backend/pkg/errors"
	"github.com/verdana-market/verdana-backend/pkg/logger"
)

type createUserRequest struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	IsActive  *bool  `json:"is_active,omitempty"`
}

// CreateUser registers a profile starting at the Seedling tier with zeroed
// counters.
func CreateUser(repo *users.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createUserRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := repo.Create(r.Context(), users.CreateUserDTO{
			Email:     req.Email,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			IsActive:  req.IsActive,
		})
		if err != nil {
			if db.IsUniqueViolation(err, "ux_users_email") {
				err = pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
			} else {
				err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, users.FromModel(user))
	}
}

// MyProgress returns the caller's progression aggregate with achievements and
// the recent monthly history.
func MyProgress(repo *users.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := repo.FindByID(r.Context(), userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				err = pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
			} else {
				err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		achievements, err := repo.ListAchievements(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list achievements"))
			return
		}
		monthly, err := repo.ListMonthlyImpact(r.Context(), userID, 12)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list monthly impact"))
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"user":           users.FromModel(user),
			"achievements":   achievements,
			"monthly_impact": monthly,
		})
	}
}
