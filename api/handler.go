package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/fy0/filterable"
	"github.com/fy0/filterable/filter"
)

func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJson(w, http.StatusOK, apiResponse{Success: true, Message: "OK"}, nil) //nolint:errcheck
}

func (s *Server) roles(r *http.Request) []string {
	if s.cfg.RoleHeader != "" {
		if v := strings.TrimSpace(r.Header.Get(s.cfg.RoleHeader)); v != "" {
			var roles []string
			for _, role := range strings.Split(v, ",") {
				if role = strings.TrimSpace(role); role != "" {
					roles = append(roles, role)
				}
			}
			return roles
		}
	}
	return s.cfg.DefaultRoles
}

// requestEngine returns the engine for r: gated by the caller's roles and
// reading translatable fields in the requested locale.
func (s *Server) requestEngine(r *http.Request, roles []string) *filter.Engine {
	engine := s.engine
	if s.rbac != nil {
		engine = engine.WithChecker(filterable.NewChecker(s.rbac, roles...))
	}
	if locale := r.URL.Query().Get("locale"); locale != "" {
		engine = engine.WithOptions(filter.CompileOptions{Translatable: true, Locale: locale})
	}
	return engine
}

func (s *Server) definitionsHandler(w http.ResponseWriter, r *http.Request) {
	entity := r.PathValue("entity")
	engine := s.requestEngine(r, s.roles(r))

	defs, err := engine.Definitions(entity, s.cfg.Level)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.writeJson(w, http.StatusOK, apiResponse{Success: true, Data: map[string]any{"definitions": defs}}, nil) //nolint:errcheck
}

func (s *Server) listHandler(w http.ResponseWriter, r *http.Request) {
	entity := r.PathValue("entity")
	roles := s.roles(r)
	engine := s.requestEngine(r, roles)
	params := r.URL.Query()

	if _, err := engine.Oracle().Metadata(entity); err != nil {
		s.handleError(w, r, err)
		return
	}
	q := filter.NewQuery(entity, s.cfg.Alias)

	node, err := s.cfg.Transport.Read(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if node != nil {
		res, err := engine.ApplyNode(q, node, s.cfg.Level)
		if err != nil {
			s.handleError(w, r, err)
			return
		}
		if !res.Valid() {
			s.handleError(w, r, &validationError{errors: res.Errors()})
			return
		}
	}

	if term := params.Get("q"); term != "" {
		if _, err := engine.Search(q, term, s.cfg.Level); err != nil {
			s.handleError(w, r, err)
			return
		}
	}

	if s.rbac != nil {
		vars := map[string]any{}
		if s.cfg.UserHeader != "" {
			vars["user_id"] = r.Header.Get(s.cfg.UserHeader)
		}
		perm := filterable.NewPermission("list:" + entity)
		scope, err := filterable.BuildScope(s.rbac, roles, []filterable.Permission[string]{perm}, vars)
		if err != nil {
			s.handleError(w, r, err)
			return
		}
		if _, err := scope.Apply(engine, q, filter.LevelValue); err != nil {
			s.handleError(w, r, err)
			return
		}
	}

	if err := engine.Sort(q, filter.ParseSort(params.Get("sort")), s.cfg.Level); err != nil {
		s.handleError(w, r, err)
		return
	}

	page, perPage, err := s.pagination(params.Get("page"), params.Get("per_page"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if err := filter.Paginate(q, page, perPage); err != nil {
		s.handleError(w, r, err)
		return
	}

	if err := q.Resolve(); err != nil {
		s.handleError(w, r, err)
		return
	}

	rows, err := s.store.Find(r.Context(), q)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	total, err := s.store.Count(r.Context(), q)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if rows == nil {
		rows = []filter.MapRow{}
	}

	s.writeJson(w, http.StatusOK, apiResponse{ //nolint:errcheck
		Success: true,
		Data: map[string]any{
			"items":    rows,
			"total":    total,
			"page":     page,
			"per_page": perPage,
		},
	}, nil)
}

func (s *Server) pagination(pageParam, perPageParam string) (int, int, error) {
	page, perPage := 1, s.cfg.PerPage
	if pageParam != "" {
		n, err := strconv.Atoi(pageParam)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: page %q", filter.ErrInvalidPagination, pageParam)
		}
		page = n
	}
	if perPageParam != "" {
		n, err := strconv.Atoi(perPageParam)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: per_page %q", filter.ErrInvalidPagination, perPageParam)
		}
		perPage = min(n, s.cfg.MaxPerPage)
	}
	if page < 1 {
		page = 1
	}
	return page, perPage, nil
}
