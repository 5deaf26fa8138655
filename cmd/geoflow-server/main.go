package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	geojson "github.com/paulmach/go.geojson"

	"github.com/civicmaps/geoflow/pkg/optimizer"
	"github.com/civicmaps/geoflow/pkg/render"
	"github.com/civicmaps/geoflow/pkg/sources"
	"github.com/civicmaps/geoflow/pkg/telemetry"
)

var (
	listenFlag    = flag.String("listen", ":8080", "HTTP listen address")
	dataURLFlag   = flag.String("data-url", "http://localhost:5000", "Base URL of the GIS data services")
	postgisFlag   = flag.String("postgis", "", "PostGIS DSN; overrides -data-url when set")
	layersFlag    = flag.String("layers", "parcels,stations,flood_zones", "Comma-separated logical layers to serve")
	cacheDirFlag  = flag.String("cache-dir", "data/layer-cache", "Disk cache directory (empty disables caching)")
	cacheTTLFlag  = flag.Duration("cache-ttl", 6*time.Hour, "Disk cache entry lifetime")
	maxFeatures   = flag.Int("max-features", 10000, "Feature budget per layer")
	memoryLimitMB = flag.Uint64("memory-limit-mb", 512, "Heap threshold in MB that triggers source cleanup")
	batchSize     = flag.Int("batch-size", 500, "Features applied per progressive-load batch")
	tickFlag      = flag.Duration("tick-interval", 10*time.Millisecond, "Scheduler tick interval")
)

type zoomRequest struct {
	zoom  float64
	reply chan map[string]*geojson.FeatureCollection
}

type clientMessage struct {
	Type   string          `json:"type"`
	Zoom   float64         `json:"zoom"`
	Layers map[string]bool `json:"layers"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

func main() {
	_ = godotenv.Load(".env")
	flag.Parse()
	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	layers := strings.Split(*layersFlag, ",")
	for i := range layers {
		layers[i] = strings.TrimSpace(layers[i])
	}

	raw, err := fetchLayers(context.Background(), layers)
	if err != nil {
		log.Fatalf("Failed to load layer data: %v", err)
	}

	mapRef := render.NewMemoryMap()
	mapRef.ApplyHints(render.Hints{RenderWorldCopies: false, MaxTileCacheSize: 64})
	for _, layer := range layers {
		if err := mapRef.AddSource(layer, geojson.NewFeatureCollection()); err != nil {
			log.Fatalf("Failed to register source %q: %v", layer, err)
		}
		if err := mapRef.AddLayer(layer, layer); err != nil {
			log.Fatalf("Failed to register layer %q: %v", layer, err)
		}
	}

	cfg := optimizer.DefaultConfig()
	cfg.MaxFeatures = *maxFeatures
	cfg.MemoryThresholdBytes = *memoryLimitMB * 1024 * 1024
	cfg.BatchSize = *batchSize
	engine := optimizer.NewEngine(mapRef, cfg, optimizer.DefaultCapabilities())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	requests := make(chan zoomRequest, 16)
	visUpdates := make(chan map[string]bool, 16)
	go engineLoop(ctx, engine, mapRef, raw, layers, requests, visUpdates)

	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler())
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveClient(w, r, requests, visUpdates)
	})

	srv := &http.Server{Addr: *listenFlag, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("Serving %d layers on %s", len(layers), *listenFlag)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("HTTP server failed: %v", err)
	}
}

// fetchLayers pulls every configured layer from PostGIS or the HTTP backend
// and normalizes the payloads before any optimization runs.
func fetchLayers(ctx context.Context, layers []string) (map[string]*geojson.FeatureCollection, error) {
	raw := make(map[string]*geojson.FeatureCollection, len(layers))

	if *postgisFlag != "" {
		src, err := sources.OpenPostGIS(*postgisFlag)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := src.Close(); err != nil {
				log.Printf("Error closing PostGIS source: %v", err)
			}
		}()
		for _, layer := range layers {
			fc, err := src.FetchLayer(ctx, layer)
			if err != nil {
				return nil, err
			}
			raw[layer] = fc
			log.Printf("Loaded layer %q from PostGIS: %d features", layer, len(fc.Features))
		}
		return raw, nil
	}

	var cache *sources.Cache
	if *cacheDirFlag != "" {
		var err error
		cache, err = sources.OpenCache(*cacheDirFlag, *cacheTTLFlag)
		if err != nil {
			log.Printf("Disk cache unavailable, fetching uncached: %v", err)
		} else {
			defer func() {
				if err := cache.Close(); err != nil {
					log.Printf("Error closing cache: %v", err)
				}
			}()
		}
	}

	client := sources.NewClient(*dataURLFlag, cache)
	for _, layer := range layers {
		payload, err := client.FetchLayer(ctx, layer)
		if err != nil {
			if err == sources.ErrNotFound {
				log.Printf("Layer %q missing upstream, serving empty", layer)
				raw[layer] = geojson.NewFeatureCollection()
				continue
			}
			return nil, err
		}
		fc := optimizer.Normalize(payload)
		raw[layer] = fc
		log.Printf("Loaded layer %q: %d features", layer, len(fc.Features))
	}
	return raw, nil
}

// engineLoop is the single goroutine that owns the engine: frame clock,
// scheduler ticks, optimization requests, and visibility updates all run
// here, in keeping with the engine's cooperative single-threaded model.
func engineLoop(ctx context.Context, engine *optimizer.Engine, mapRef *render.MemoryMap,
	raw map[string]*geojson.FeatureCollection, layers []string,
	requests <-chan zoomRequest, visUpdates <-chan map[string]bool) {

	frame := time.NewTicker(time.Second / 60)
	tick := time.NewTicker(*tickFlag)
	defer frame.Stop()
	defer tick.Stop()
	defer engine.Destroy()

	var waiting []zoomRequest
	for {
		select {
		case <-ctx.Done():
			return
		case <-frame.C:
			engine.OnFrame()
		case <-tick.C:
			engine.Tick()
			if len(waiting) > 0 && !engine.Loading() {
				snap := snapshot(mapRef, layers)
				for _, req := range waiting {
					req.reply <- snap
				}
				waiting = nil
			}
		case req := <-requests:
			for _, layer := range layers {
				engine.OptimizeLayer(layer, layer, raw[layer], req.zoom)
			}
			waiting = append(waiting, req)
		case upd := <-visUpdates:
			engine.BatchSetVisible(upd)
		}
	}
}

func snapshot(mapRef *render.MemoryMap, layers []string) map[string]*geojson.FeatureCollection {
	snap := make(map[string]*geojson.FeatureCollection, len(layers))
	for _, layer := range layers {
		if src, ok := mapRef.GetMemorySource(layer); ok {
			snap[layer] = src.Data()
		}
	}
	return snap
}

func serveClient(w http.ResponseWriter, r *http.Request,
	requests chan<- zoomRequest, visUpdates chan<- map[string]bool) {

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Upgrade failed: %v", err)
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Printf("Error closing websocket: %v", err)
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var cm clientMessage
		if json.Unmarshal(msg, &cm) != nil {
			continue
		}
		switch cm.Type {
		case "zoom":
			reply := make(chan map[string]*geojson.FeatureCollection, 1)
			select {
			case requests <- zoomRequest{zoom: cm.Zoom, reply: reply}:
			case <-r.Context().Done():
				return
			}
			select {
			case snap := <-reply:
				if err := conn.WriteJSON(snap); err != nil {
					log.Printf("Write failed: %v", err)
					return
				}
			case <-time.After(30 * time.Second):
				log.Printf("Timed out waiting for optimization pass at zoom %.1f", cm.Zoom)
			}
		case "visibility":
			if cm.Layers != nil {
				visUpdates <- cm.Layers
			}
		}
	}
}
