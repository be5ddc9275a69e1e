package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/verdana-market/verdana-backend/api/middleware"
	"github.com/verdana-market/verdana-backend/api/responses"
	"github.com/verdana-market/verdana-backend/api/validators"
	"github.com/verdana-market/verdana-backend/internal/groups"
	"github.com/verdana-market/verdana-backend/internal/progression"
	"github.com/verdana-market/verdana-backend/internal/settlement"
	pkgerrors "github.com/verdana-market/verdana-backend/pkg/errors"
	"github.com/verdana-market/verdana-backend/pkg/logger"
)

type settleLineRequest struct {
	ProductID          uuid.UUID `json:"product_id" validate:"required"`
	Quantity           int       `json:"quantity" validate:"required,min=1"`
	UnitPriceOverrides *int64    `json:"unit_price_override_cents,omitempty" validate:"omitempty,min=0"`
}

type settleRequest struct {
	Lines           []settleLineRequest `json:"lines" validate:"required,min=1,dive"`
	DiscountCents   int64               `json:"discount_cents" validate:"min=0"`
	ShippingAddress *string             `json:"shipping_address,omitempty"`
	BillingAddress  *string             `json:"billing_address,omitempty"`
	PaymentMethod   *string             `json:"payment_method,omitempty"`
}

type progressionResponse struct {
	Applied         bool     `json:"applied"`
	ImpactPoints    int64    `json:"impact_points"`
	Tier            string   `json:"tier"`
	TierChanged     bool     `json:"tier_changed"`
	CurrentStreak   int      `json:"current_streak"`
	LongestStreak   int      `json:"longest_streak"`
	NewAchievements []string `json:"new_achievements,omitempty"`
}

type groupOutcomeResponse struct {
	GroupID            uuid.UUID                    `json:"group_id"`
	Applied            bool                         `json:"applied"`
	ContributionCredit int64                        `json:"contribution_credit"`
	GroupImpactPoints  int64                        `json:"group_impact_points"`
	GroupTier          string                       `json:"group_tier"`
	Challenge          *challengeCompletionResponse `json:"challenge_completed,omitempty"`
}

type challengeCompletionResponse struct {
	ChallengeID      uuid.UUID `json:"challenge_id"`
	Name             string    `json:"name"`
	RewardPoints     int64     `json:"reward_points"`
	ParticipantCount int       `json:"participant_count"`
}

// Checkout settles the caller's order in one request: persist, reward, fan
// out. Partial downstream failures surface as errors; the order stays settled
// and the event worker finishes delivery.
func Checkout(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req settleRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := settlement.SettleInput{
			DiscountCents:   req.DiscountCents,
			ShippingAddress: req.ShippingAddress,
			BillingAddress:  req.BillingAddress,
			PaymentMethod:   req.PaymentMethod,
		}
		for _, line := range req.Lines {
			input.Lines = append(input.Lines, settlement.SettleLine{
				ProductID:          line.ProductID,
				Quantity:           line.Quantity,
				UnitPriceOverrides: line.UnitPriceOverrides,
			})
		}

		result, err := svc.Settle(r.Context(), userID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"order":       newOrderResponse(result.Order),
			"progression": toProgressionResponse(result.Progression),
			"groups":      toGroupOutcomeResponses(result.Groups),
		})
	}
}

func toProgressionResponse(result *progression.Result) *progressionResponse {
	if result == nil {
		return nil
	}
	resp := &progressionResponse{
		Applied:       result.Applied,
		ImpactPoints:  result.ImpactPoints,
		Tier:          result.Tier,
		TierChanged:   result.TierChanged,
		CurrentStreak: result.CurrentStreak,
		LongestStreak: result.LongestStreak,
	}
	for _, kind := range result.NewAchievements {
		resp.NewAchievements = append(resp.NewAchievements, string(kind))
	}
	return resp
}

func toGroupOutcomeResponses(outcomes []groups.GroupOutcome) []groupOutcomeResponse {
	resp := make([]groupOutcomeResponse, 0, len(outcomes))
	for _, outcome := range outcomes {
		entry := groupOutcomeResponse{
			GroupID:            outcome.GroupID,
			Applied:            outcome.Applied,
			ContributionCredit: outcome.ContributionCredit,
			GroupImpactPoints:  outcome.GroupImpactPoints,
			GroupTier:          outcome.GroupTier,
		}
		if c := outcome.ChallengeCompletion; c != nil {
			entry.Challenge = &challengeCompletionResponse{
				ChallengeID:      c.ChallengeID,
				Name:             c.Name,
				RewardPoints:     c.RewardPoints,
				ParticipantCount: c.ParticipantCount,
			}
		}
		resp = append(resp, entry)
	}
	return resp
}

// callerID resolves the authenticated user id seeded by the auth middleware.
func callerID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}
