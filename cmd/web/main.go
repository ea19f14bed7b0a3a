package main

import (
	"database/sql"
	"embed"
	"encoding/json"
	"html/template"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"

	_ "github.com/lib/pq"

	"github.com/devraulu/deepsearch/pkg/analyze"
	"github.com/devraulu/deepsearch/pkg/config"
	"github.com/devraulu/deepsearch/pkg/insights"
	"github.com/devraulu/deepsearch/pkg/logger"
	"github.com/devraulu/deepsearch/pkg/storage"
)

//go:embed templates/*
var templates embed.FS

//go:embed static/*
var staticFiles embed.FS

type RunListing struct {
	Runs  []storage.RunSummary
	Query string
}

// resultDoc mirrors the serialized per-document shape of the result
// contract; the browser renders stored payloads, it never re-runs them.
type resultDoc struct {
	URL         string              `json:"url"`
	Title       string              `json:"title"`
	Status      string              `json:"status"`
	Credibility float64             `json:"credibility"`
	WordCount   int                 `json:"word_count"`
	Sentiment   analyze.Sentiment   `json:"sentiment"`
	Keyphrases  []analyze.Keyphrase `json:"keyphrases"`
	Entities    map[string][]string `json:"entities"`
}

type resultView struct {
	Query     string            `json:"query"`
	Timestamp string            `json:"timestamp"`
	Results   []resultDoc       `json:"results"`
	Insights  insights.Insights `json:"insights"`
}

type RunView struct {
	Run    *storage.Run
	Result *resultView
}

var tmpl *template.Template

func main() {
	cfg, err := config.Load("config.toml")
	if err != nil {
		log.Fatal(err)
	}

	logger.InitLogger(cfg)

	if cfg.ArchiveDSN == "" {
		log.Fatal("archive_dsn must be configured for the archive browser")
	}

	db, err := sql.Open("postgres", cfg.ArchiveDSN)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := storage.RunMigrations(db); err != nil {
		log.Fatal(err)
	}

	store := storage.NewPostgresStorage(db)

	tmpl = template.Must(template.New("").ParseFS(templates, "templates/*.html"))

	http.HandleFunc("/", handleIndex(store))
	http.HandleFunc("/run", handleRun(store))

	staticFS, _ := fs.Sub(staticFiles, "static")
	http.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	addr := ":8080"
	if v := os.Getenv("DEEPSEARCH_WEB_ADDR"); v != "" {
		addr = v
	}
	slog.Info("starting archive browser", "addr", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}

func handleIndex(store *storage.PostgresStorage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")

		var runs []storage.RunSummary
		var err error
		if query == "" {
			runs, err = store.RecentRuns(r.Context(), 100)
		} else {
			runs, err = store.SearchRuns(r.Context(), query, 100)
		}
		if err != nil {
			slog.Error("archive search failed", slog.String("query", query), slog.Any("err", err))
			http.Error(w, "Search failed", http.StatusInternalServerError)
			return
		}

		tmpl.ExecuteTemplate(w, "index.html", RunListing{Runs: runs, Query: query})
	}
}

func handleRun(store *storage.PostgresStorage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		if id == "" {
			http.NotFound(w, r)
			return
		}

		run, err := store.GetRun(r.Context(), id)
		if err != nil {
			slog.Error("run lookup failed", slog.String("id", id), slog.Any("err", err))
			http.NotFound(w, r)
			return
		}

		var result resultView
		if err := json.Unmarshal(run.Payload, &result); err != nil {
			slog.Error("stored payload unreadable", slog.String("id", id), slog.Any("err", err))
			http.Error(w, "Corrupt run payload", http.StatusInternalServerError)
			return
		}

		tmpl.ExecuteTemplate(w, "run.html", RunView{Run: run, Result: &result})
	}
}
