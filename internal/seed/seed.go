// Package seed loads a YAML fixture of users, businesses and reviews into the
// listing store through the same repositories the API writes with.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"neighborhood_directory/internal/app"
	"neighborhood_directory/internal/domain"
)

type File struct {
	Users      []User     `yaml:"users"`
	Businesses []Business `yaml:"businesses"`
}

type User struct {
	Name     string      `yaml:"name"`
	Email    string      `yaml:"email"`
	Phone    string      `yaml:"phone"`
	Password string      `yaml:"password"`
	Role     domain.Role `yaml:"role"`
}

type Business struct {
	Name        string              `yaml:"name"`
	Owner       string              `yaml:"owner"` // owner email
	Category    string              `yaml:"category"`
	Address     string              `yaml:"address"`
	Coords      *domain.Coords      `yaml:"coords"`
	Description string              `yaml:"description"`
	Phone       string              `yaml:"phone"`
	Website     string              `yaml:"website"`
	Images      []string            `yaml:"images"`
	Hours       map[string]DayHours `yaml:"hours"`
	IsOpen      bool                `yaml:"is_open"`
	Public      *bool               `yaml:"public"` // default true
	Featured    bool                `yaml:"featured"`
	Reviews     []Review            `yaml:"reviews"`
}

type DayHours struct {
	Open   bool   `yaml:"open"`
	Opens  string `yaml:"opens"`
	Closes string `yaml:"closes"`
}

type Review struct {
	Author  string `yaml:"author"` // author email
	Rating  int    `yaml:"rating"`
	Comment string `yaml:"comment"`
}

func Parse(r io.Reader) (File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("parse seed: %w", err)
	}
	return f, nil
}

type Repos struct {
	Businesses domain.BusinessRepository
	Reviews    domain.ReviewRepository
	Users      domain.UserRepository
	Cache      domain.Cache // optional; listing keys are evicted per seeded business
}

type Result struct {
	Users      int
	Businesses int
	Reviews    int
	Featured   int
}

// Apply writes f. Users whose email already exists are reused, so a seed
// can be re-run to add businesses for existing accounts.
func Apply(ctx context.Context, repos Repos, f File) (Result, error) {
	var res Result
	if repos.Cache == nil {
		repos.Cache = app.NopCache{}
	}
	now := time.Now().UTC()
	byEmail := map[string]domain.User{}

	for _, su := range f.Users {
		email := domain.NormalizeEmail(su.Email)
		if existing, err := repos.Users.GetUserByEmail(ctx, email); err == nil {
			byEmail[email] = existing
			continue
		} else if !errors.Is(err, domain.ErrNotFound) {
			return res, err
		}
		role := su.Role
		if role == "" {
			role = domain.RoleResident
		}
		if !role.Valid() {
			return res, fmt.Errorf("user %s: unknown role %q", email, role)
		}
		reg := domain.Registration{Name: su.Name, Email: email, Password: su.Password, ConfirmPassword: su.Password}
		if err := reg.Validate(); err != nil {
			return res, fmt.Errorf("user %s: %w", email, err)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(su.Password), bcrypt.DefaultCost)
		if err != nil {
			return res, err
		}
		u := domain.User{
			ID: uuid.NewString(), Name: strings.TrimSpace(su.Name), Email: email, Phone: su.Phone,
			Favorites: []string{}, Role: role, PasswordHash: string(hash), CreatedAt: now,
		}
		if err := repos.Users.CreateUser(ctx, u); err != nil {
			return res, fmt.Errorf("user %s: %w", email, err)
		}
		byEmail[email] = u
		res.Users++
	}

	lookup := func(email string) (domain.User, error) {
		email = domain.NormalizeEmail(email)
		if u, ok := byEmail[email]; ok {
			return u, nil
		}
		u, err := repos.Users.GetUserByEmail(ctx, email)
		if err != nil {
			return domain.User{}, fmt.Errorf("unknown user %q: %w", email, err)
		}
		byEmail[email] = u
		return u, nil
	}

	for i, sb := range f.Businesses {
		owner, err := lookup(sb.Owner)
		if err != nil {
			return res, fmt.Errorf("business %q: %w", sb.Name, err)
		}
		cat, err := domain.ParseCategory(sb.Category)
		if err != nil {
			return res, fmt.Errorf("business %q: %w", sb.Name, err)
		}
		b := domain.Business{
			ID: uuid.NewString(), OwnerID: owner.ID, Name: strings.TrimSpace(sb.Name), Category: cat,
			Address: strings.TrimSpace(sb.Address), Coords: sb.Coords, Description: sb.Description,
			Phone: sb.Phone, Website: sb.Website, Images: append([]string{}, sb.Images...),
			IsOpen: sb.IsOpen, IsPublic: sb.Public == nil || *sb.Public,
			// keep file order as listing order
			CreatedAt: now.Add(time.Duration(i) * time.Millisecond),
			UpdatedAt: now,
		}
		if len(sb.Hours) > 0 {
			b.Hours = domain.WeeklyHours{}
			for day, h := range sb.Hours {
				b.Hours[strings.ToLower(day)] = domain.DayHours{Open: h.Open, Opens: h.Opens, Closes: h.Closes}
			}
		}
		if err := b.Validate(); err != nil {
			return res, fmt.Errorf("business %q: %w", sb.Name, err)
		}
		if err := repos.Businesses.CreateBusiness(ctx, b); err != nil {
			return res, err
		}
		res.Businesses++

		for j, sr := range sb.Reviews {
			author, err := lookup(sr.Author)
			if err != nil {
				return res, fmt.Errorf("review on %q: %w", sb.Name, err)
			}
			rv := domain.Review{
				ID: uuid.NewString(), BusinessID: b.ID, AuthorID: author.ID, AuthorName: author.Name,
				Rating: sr.Rating, Comment: strings.TrimSpace(sr.Comment),
				CreatedAt: now.Add(time.Duration(j) * time.Millisecond),
			}
			if err := rv.Validate(); err != nil {
				return res, fmt.Errorf("review on %q: %w", sb.Name, err)
			}
			if _, err := repos.Reviews.AddReview(ctx, rv); err != nil {
				return res, err
			}
			res.Reviews++
		}

		if sb.Featured {
			err := repos.Businesses.SetFeatured(ctx, b.ID, true)
			switch {
			case errors.Is(err, domain.ErrFeaturedCapReached):
				log.Warn().Str("business", b.Name).Msg("featured cap reached; seeded unfeatured")
			case err != nil:
				return res, err
			default:
				res.Featured++
			}
		}
		app.EvictBusiness(ctx, repos.Cache, b.ID)
	}
	return res, nil
}
