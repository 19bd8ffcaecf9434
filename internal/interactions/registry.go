package interactions

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/lumen-church/backend/internal/models"
)

// Registry holds one Service per namespace.
type Registry map[models.Namespace]*Service

// NewRegistry builds the services for every namespace. Blog comments are
// moderated; event and sermon comments are visible at once.
func NewRegistry(store func(models.Namespace) Store, logger *zap.Logger) Registry {
	r := Registry{}
	for _, ns := range []models.Namespace{models.NamespaceEvent, models.NamespaceBlogPost, models.NamespaceSermon} {
		r[ns] = NewService(ns, store(ns), ns == models.NamespaceBlogPost, logger)
	}
	return r
}

// LoadAll loads every namespace, continuing past failures.
func (r Registry) LoadAll(ctx context.Context) error {
	var errs []error
	for _, s := range r {
		if err := s.Load(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Tables returns the change-notification tables of every namespace, mapped
// to the service that owns them.
func (r Registry) Tables() map[string]*Service {
	out := make(map[string]*Service, 2*len(r))
	for ns, s := range r {
		out[string(ns)+"_likes"] = s
		out[string(ns)+"_comments"] = s
	}
	return out
}

// Bind sets the target lookup of namespace ns.
func (r Registry) Bind(ns models.Namespace, fn Lookup) {
	if s, ok := r[ns]; ok {
		s.SetLookup(fn)
	}
}
