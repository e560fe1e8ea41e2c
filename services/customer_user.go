package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sierra-preorder/models"
	"sierra-preorder/store"
)

// Users keeps customers keyed by mobile number. Users are never deleted.
type Users struct {
	store store.Gateway
	now   func() time.Time
}

func NewUsers(gw store.Gateway) *Users {
	return &Users{store: gw, now: time.Now}
}

// Login returns the user with this mobile, creating it on first sight. A different name
// for a known mobile replaces the stored one. The lookup and write are separate calls.
func (u *Users) Login(ctx context.Context, fullName, mobile string) (*models.User, error) {
	fullName = strings.TrimSpace(fullName)
	mobile = normalizeMobile(mobile)
	if fullName == "" {
		return nil, invalid("full_name", "Please enter your name.")
	}
	if mobile == "" {
		return nil, invalid("mobile", "Please enter your mobile number.")
	}

	existing, err := u.ByMobile(ctx, mobile)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.FullName == fullName {
			return existing, nil
		}
		var updated models.User
		if err := u.store.Update(ctx, store.TableUsers, existing.ID, map[string]string{"full_name": fullName}, &updated); err != nil {
			return nil, notFound(err)
		}
		return &updated, nil
	}

	var created models.User
	rec := models.User{FullName: fullName, Mobile: mobile, CreatedAt: u.now().UTC()}
	if err := u.store.Insert(ctx, store.TableUsers, rec, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// ByMobile returns nil, nil when no user has this mobile.
func (u *Users) ByMobile(ctx context.Context, mobile string) (*models.User, error) {
	var rows []models.User
	q := store.Query{Filters: []store.Filter{store.Eq("mobile", normalizeMobile(mobile))}, Limit: 1}
	if err := u.store.List(ctx, store.TableUsers, q, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (u *Users) Get(ctx context.Context, id string) (*models.User, error) {
	users, err := usersByID(ctx, u.store, []string{id})
	if err != nil {
		return nil, err
	}
	user, ok := users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return user, nil
}

func usersByID(ctx context.Context, gw store.Gateway, ids []string) (map[string]*models.User, error) {
	out := make(map[string]*models.User, len(ids))
	for _, id := range ids {
		var rows []models.User
		q := store.Query{Filters: []store.Filter{store.Eq("id", id)}, Limit: 1}
		if err := gw.List(ctx, store.TableUsers, q, &rows); err != nil {
			return nil, err
		}
		if len(rows) > 0 {
			out[id] = &rows[0]
		}
	}
	return out, nil
}

// normalizeMobile drops spaces, dashes and brackets so "0770 090-0123" and "07700900123" match.
func normalizeMobile(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch r {
		case ' ', '-', '(', ')', '.':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
