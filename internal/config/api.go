package config

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
)

const redacted = "***"

// ConfigAPI provides read-only HTTP endpoints over the running configuration
type ConfigAPI struct {
	cfg    *Config
	mu     sync.RWMutex
	router *mux.Router
}

func NewConfigAPI(cfg *Config) *ConfigAPI {
	api := &ConfigAPI{
		cfg:    cfg,
		router: mux.NewRouter(),
	}
	api.Register(api.router)
	return api
}

func (api *ConfigAPI) Router() *mux.Router {
	return api.router
}

// Register mounts the config routes on r.
func (api *ConfigAPI) Register(r *mux.Router) {
	r.HandleFunc("/configure", api.getConfig).Methods("GET")
	r.HandleFunc("/configure/", api.getConfig).Methods("GET")
	r.HandleFunc("/configure/validate", api.validateConfig).Methods("POST")
	r.HandleFunc("/configure/{section}", api.getSection).Methods("GET")
}

func (api *ConfigAPI) getConfig(w http.ResponseWriter, r *http.Request) {
	api.mu.RLock()
	defer api.mu.RUnlock()
	writeJSON(w, http.StatusOK, api.safeConfigCopy())
}

func (api *ConfigAPI) validateConfig(w http.ResponseWriter, r *http.Request) {
	cfg := Default()
	if err := json.NewDecoder(r.Body).Decode(cfg); err != nil {
		http.Error(w, fmt.Sprintf("invalid config payload: %v", err), http.StatusBadRequest)
		return
	}
	if err := cfg.Validate(); err != nil {
		http.Error(w, fmt.Sprintf("invalid configuration: %v", err), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"valid": true, "message": "configuration is valid"})
}

func (api *ConfigAPI) getSection(w http.ResponseWriter, r *http.Request) {
	api.mu.RLock()
	defer api.mu.RUnlock()

	safe := api.safeConfigCopy()
	section := mux.Vars(r)["section"]
	var sectionCfg interface{}

	switch section {
	case "server":
		sectionCfg = safe.Server
	case "log":
		sectionCfg = safe.Log
	case "analysis":
		sectionCfg = safe.Analysis
	case "store":
		sectionCfg = safe.Store
	case "redis":
		sectionCfg = safe.Redis
	case "minio":
		sectionCfg = safe.MinIO
	case "metrics":
		sectionCfg = safe.Metrics
	default:
		http.Error(w, fmt.Sprintf("unknown section: %s", section), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, sectionCfg)
}

func (api *ConfigAPI) safeConfigCopy() *Config {
	copyCfg := *api.cfg
	copyCfg.Server.CORSOrigins = append([]string(nil), api.cfg.Server.CORSOrigins...)
	copyCfg.Log.OutputPaths = append([]string(nil), api.cfg.Log.OutputPaths...)
	if copyCfg.MinIO.AccessKey != "" {
		copyCfg.MinIO.AccessKey = redacted
	}
	if copyCfg.MinIO.SecretKey != "" {
		copyCfg.MinIO.SecretKey = redacted
	}
	if copyCfg.Redis.Password != "" {
		copyCfg.Redis.Password = redacted
	}
	if copyCfg.Store.DSN != "" && copyCfg.Store.Driver == "postgres" {
		copyCfg.Store.DSN = redacted
	}
	return &copyCfg
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
