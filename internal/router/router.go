package router

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "odontolegal/docs"
	"odontolegal/internal/adapters/queue/redisqueue"
	"odontolegal/internal/adapters/renderer/textrender"
	mem "odontolegal/internal/adapters/storage/memory"
	pg "odontolegal/internal/adapters/storage/postgres"
	"odontolegal/internal/domain/audit"
	"odontolegal/internal/domain/cases"
	"odontolegal/internal/domain/dentalrecords"
	"odontolegal/internal/domain/evidence"
	"odontolegal/internal/domain/reports"
	"odontolegal/internal/middleware"
	"odontolegal/internal/platform/logger"
	"odontolegal/internal/platform/metrics"
	"odontolegal/internal/ports/auth"
	"odontolegal/internal/ports/files"
	"odontolegal/internal/ports/render"
)

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)

	// Opcional: si viene, usa Postgres. Si no, in-memory.
	DB *sql.DB

	// Opcional: cola de reconciliación del historial en Redis.
	Redis    *redis.Client
	RedisKey string

	// Files nil = store en memoria. Renderer nil = export en texto plano al store.
	Files    files.Store
	Renderer render.Renderer

	Logger  logger.Logger
	Metrics *metrics.Metrics
}

// App es el router armado más lo que main necesita para tareas de fondo.
type App struct {
	Handler http.Handler
	Trail   *audit.Trail
}

func NewRouter(opts Options) http.Handler {
	return Build(opts).Handler
}

func Build(opts Options) *App {
	log := opts.Logger
	if log == nil {
		log = logger.NewFromEnv()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.AuthContext(opts.AuthVerifier))
	r.Use(middleware.RequestLog(log))
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	var (
		caseRepo     cases.Repository
		evidenceRepo evidence.Repository
		reportRepo   reports.Repository
		recordRepo   dentalrecords.Repository
		matchRepo    dentalrecords.MatchRepository
		historyRepo  audit.Repository
		queue        audit.Queue
	)

	if opts.DB != nil {
		caseRepo = pg.NewCasesRepo(opts.DB)
		evidenceRepo = pg.NewEvidenceRepo(opts.DB)
		reportRepo = pg.NewReportsRepo(opts.DB)
		recordRepo = pg.NewDentalRecordsRepo(opts.DB)
		matchRepo = pg.NewMatchesRepo(opts.DB)
		historyRepo = pg.NewHistoryRepo(opts.DB)
	} else {
		caseRepo = mem.NewCaseRepo()
		evidenceRepo = mem.NewEvidenceRepo()
		reportRepo = mem.NewReportRepo()
		recordRepo = mem.NewDentalRecordRepo()
		matchRepo = mem.NewMatchRepo()
		historyRepo = mem.NewHistoryRepo()
	}

	fileStore := opts.Files
	if fileStore == nil {
		fileStore = mem.NewFileStore()
	}
	renderer := opts.Renderer
	if renderer == nil {
		renderer = textrender.New(fileStore)
	}

	if opts.Redis != nil {
		queue = redisqueue.New(opts.Redis, opts.RedisKey)
	} else {
		queue = mem.NewAuditQueue()
	}

	trail := audit.NewTrail(historyRepo,
		audit.WithQueue(queue),
		audit.WithMetrics(m),
		audit.WithLogger(log.With(map[string]any{"component": "audit"})),
	)

	// Services por módulo
	casesSvc := cases.NewService(caseRepo, trail)
	evidenceSvc := evidence.NewService(evidenceRepo, casesSvc, fileStore, trail, log.With(map[string]any{"component": "evidence"}))
	reportsSvc := reports.NewService(reportRepo, casesSvc, trail, renderer, m)
	recordsSvc := dentalrecords.NewService(recordRepo, dentalrecords.NewRegistry(matchRepo), casesSvc, trail, m,
		log.With(map[string]any{"component": "dentalrecords"}))

	// borrar un caso arrastra evidencias y laudos
	casesSvc.AddDependents(evidenceSvc, reportsSvc)

	// Rutas por módulo
	cases.RegisterRoutes(r, casesSvc)
	evidence.RegisterRoutes(r, evidenceSvc)
	reports.RegisterRoutes(r, reportsSvc)
	dentalrecords.RegisterRoutes(r, recordsSvc)
	audit.RegisterAdminRoutes(r, trail)

	return &App{Handler: r, Trail: trail}
}
