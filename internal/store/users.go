package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"webgen-bot/internal/common/errors"
)

// UserByContact returns the account attached to a contact.
func (s *Store) UserByContact(ctx context.Context, contactID string) (*User, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, contact_id, COALESCE(name, ''), COALESCE(email, ''), tokens, plan_id, created_at
		   FROM users
		  WHERE contact_id = $1`,
		contactID,
	)

	var u User
	if err := row.Scan(&u.ID, &u.ContactID, &u.Name, &u.Email, &u.Tokens, &u.PlanID, &u.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewRecordNotFoundError("user", contactID)
		}
		return nil, errors.NewQueryExecutionFailedError("UserByContact", err)
	}
	return &u, nil
}

// CreateUser inserts an account for the contact with a starting token
// balance and returns its id.
func (s *Store) CreateUser(ctx context.Context, contactID, name, email string, tokens int) (string, error) {
	id := uuid.New().String()
	if err := s.exec(ctx, "users", "insert",
		`INSERT INTO users (id, contact_id, name, email, tokens, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())`,
		id, contactID, name, email, tokens,
	); err != nil {
		return "", err
	}
	return id, nil
}

// UpdateUserTokens sets the token balance.
func (s *Store) UpdateUserTokens(ctx context.Context, userID string, tokens int) error {
	return s.exec(ctx, "users", "update",
		`UPDATE users SET tokens = $1 WHERE id = $2`,
		tokens, userID,
	)
}

// UpdateUserPlan assigns a plan and refreshes the token balance to the
// plan's allowance.
func (s *Store) UpdateUserPlan(ctx context.Context, userID, planID string, tokens int) error {
	return s.exec(ctx, "users", "update",
		`UPDATE users SET plan_id = $1, tokens = $2 WHERE id = $3`,
		planID, tokens, userID,
	)
}

// AllPlans returns every plan ordered by price ascending.
func (s *Store) AllPlans(ctx context.Context) ([]Plan, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, plan_name, price, tokens FROM plans ORDER BY price ASC`,
	)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("AllPlans", err)
	}
	defer rows.Close()

	var plans []Plan
	for rows.Next() {
		var p Plan
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Tokens); err != nil {
			return nil, errors.NewQueryExecutionFailedError("AllPlans", err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("AllPlans", err)
	}
	return plans, nil
}

// UserPlan resolves the user's plan, falling back to the default Free plan
// when none is assigned.
func (s *Store) UserPlan(ctx context.Context, user *User) (Plan, error) {
	if !user.PlanID.Valid || user.PlanID.String == "" {
		return DefaultFreePlan, nil
	}

	row := s.db.QueryRow(ctx,
		`SELECT id, plan_name, price, tokens FROM plans WHERE id = $1`,
		user.PlanID.String,
	)
	var p Plan
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Tokens); err != nil {
		if err == sql.ErrNoRows {
			return DefaultFreePlan, nil
		}
		return Plan{}, errors.NewQueryExecutionFailedError("UserPlan", err)
	}
	return p, nil
}

// CanCreatePage checks the page quota of the user's current plan.
func (s *Store) CanCreatePage(ctx context.Context, user *User) (*Quota, error) {
	plan, err := s.UserPlan(ctx, user)
	if err != nil {
		return nil, err
	}

	used, err := s.UserPagesCount(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	q := &Quota{
		Allowed:  used < plan.Tokens,
		Limit:    plan.Tokens,
		Used:     used,
		PlanName: plan.Name,
	}
	if q.Allowed {
		q.RemainingPages = plan.Tokens - used
	}
	return q, nil
}
