// Package tenant maps an inbound Host to the organization that owns it.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/lalith-99/vectorvault/internal/models"
	"github.com/lalith-99/vectorvault/internal/repository"
)

var ErrTenantNotFound = errors.New("organization not found")

// HostKind classifies a host relative to the root domain.
type HostKind int

const (
	// HostRoot is the application's own domain; no tenant is implied.
	HostRoot HostKind = iota
	// HostSubdomain is {slug}.<root>.
	HostSubdomain
	// HostCustom is any other host, matched against custom domains.
	HostCustom
)

// Resolver looks up organizations by subdomain slug or custom domain.
type Resolver struct {
	orgs repository.OrganizationRepository
	root string
}

func NewResolver(orgs repository.OrganizationRepository, rootDomain string) *Resolver {
	return &Resolver{orgs: orgs, root: normalize(rootDomain)}
}

// normalize lowercases and strips a port, IPv6 brackets and any trailing dot.
func normalize(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	return strings.TrimSuffix(host, ".")
}

// Classify returns the kind of host and, for subdomains, the slug label.
func (r *Resolver) Classify(host string) (HostKind, string) {
	host = normalize(host)

	switch host {
	case "", r.root, "www." + r.root, "localhost", "127.0.0.1", "::1":
		return HostRoot, ""
	}

	if r.root != "" {
		if label, ok := strings.CutSuffix(host, "."+r.root); ok && label != "" && !strings.Contains(label, ".") {
			return HostSubdomain, label
		}
	}
	return HostCustom, host
}

// Resolve returns the organization for host, nil for the root domain, or
// ErrTenantNotFound when no organization owns it.
func (r *Resolver) Resolve(ctx context.Context, host string) (*models.Organization, error) {
	kind, key := r.Classify(host)

	var (
		org *models.Organization
		err error
	)
	switch kind {
	case HostRoot:
		return nil, nil
	case HostSubdomain:
		org, err = r.orgs.GetBySlug(ctx, key)
	default:
		org, err = r.orgs.GetByCustomDomain(ctx, key)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve tenant %q: %w", key, err)
	}
	if org == nil {
		return nil, ErrTenantNotFound
	}
	return org, nil
}

type ctxKey struct{}

// WithOrganization attaches a resolved organization to ctx.
func WithOrganization(ctx context.Context, org *models.Organization) context.Context {
	return context.WithValue(ctx, ctxKey{}, org)
}

// FromContext returns the organization attached by WithOrganization.
func FromContext(ctx context.Context) (*models.Organization, bool) {
	org, ok := ctx.Value(ctxKey{}).(*models.Organization)
	return org, ok && org != nil
}
