// Package actuator serves read-only diagnostics for a kernel over HTTP.
//
//	GET /phase                   {"data":{"phase":"active","lifecycle":"…"}}
//	GET /beans                   registered keys with type and place state
//	GET /contexts                names of the exposed contexts
//	GET /contexts/{name}/aliases resolved alias table of one context
//	GET /metrics                 Prometheus exposition
package actuator

import (
	"net/http"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/km-arc/go-beans/framework/kernel"
	gohttp "github.com/km-arc/go-beans/http"
	"github.com/km-arc/go-beans/routing"
)

type server struct {
	kernel   *kernel.Kernel
	contexts map[string]*kernel.Context
}

// PhaseInfo is the /phase payload.
type PhaseInfo struct {
	Phase     string `json:"phase"`
	Lifecycle string `json:"lifecycle,omitempty"`
}

// Handler builds the diagnostics router. The kernel's root context is
// always exposed; extra contexts are listed under their names. A nil
// gatherer leaves /metrics unmounted.
func Handler(k *kernel.Kernel, g prometheus.Gatherer, logger zerolog.Logger, contexts ...*kernel.Context) http.Handler {
	s := &server{kernel: k, contexts: make(map[string]*kernel.Context)}
	for _, c := range contexts {
		if c != nil {
			s.contexts[c.Name()] = c
		}
	}

	r := routing.New(logger)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) { gohttp.NewResponse(w).NotFound() })
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) { gohttp.NewResponse(w).MethodNotAllowed() })

	r.Get("/phase", s.phase)
	r.Group(func(active *routing.Router) {
		active.Middleware(s.requireActive)
		active.Get("/beans", s.beans)
		active.Prefix("/contexts", func(c *routing.Router) {
			c.Get("/", s.contextNames)
			c.Get("/{name}/aliases", s.aliases)
		})
	})
	if g != nil {
		r.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	}
	return r
}

func (s *server) phase(w http.ResponseWriter, _ *http.Request) {
	gohttp.NewResponse(w).Success(PhaseInfo{
		Phase:     s.kernel.Phase().String(),
		Lifecycle: s.kernel.LifecycleID(),
	})
}

// requireActive answers 503 unless the kernel is active. Bean state is only
// readable while the lifecycle is active.
func (s *server) requireActive(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := s.kernel.Phase(); p != kernel.PhaseActive {
			gohttp.NewResponse(w).Unavailable("kernel is " + p.String())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) beans(w http.ResponseWriter, _ *http.Request) {
	gohttp.NewResponse(w).Success(s.kernel.Registry().Describe())
}

func (s *server) lookup(name string) *kernel.Context {
	if root := s.kernel.Root(); root != nil && root.Name() == name {
		return root
	}
	return s.contexts[name]
}

func (s *server) contextNames(w http.ResponseWriter, _ *http.Request) {
	seen := make(map[string]bool)
	if root := s.kernel.Root(); root != nil {
		seen[root.Name()] = true
	}
	for name := range s.contexts {
		seen[name] = true
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	gohttp.NewResponse(w).Success(names)
}

func (s *server) aliases(w http.ResponseWriter, r *http.Request) {
	res := gohttp.NewResponse(w)
	name := routing.Param(r, "name")
	c := s.lookup(name)
	if c == nil {
		res.NotFound("unknown context " + name)
		return
	}
	res.Success(c.Aliases())
}
