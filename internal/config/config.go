package config

import (
	"bytes"
	"fmt"
	"net"
	neturl "net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	defaultPort       = 2333
	defaultEnv        = "development"
	defaultDBHost     = "127.0.0.1"
	defaultDBPort     = 3306
	defaultDBUser     = "root"
	defaultDBPassword = "password"
	defaultDBName     = "deepscholar"
	defaultDBCharset  = "utf8mb4"
	defaultDBLoc      = "Local"
	defaultRedisHost  = "localhost"
	defaultRedisPort  = 6379
	defaultRedisDB    = 0

	defaultCacheDays          = 30
	defaultTopKPerSection     = 20
	defaultTopKAccepted       = 8
	defaultSectionConcurrency = 3
	defaultQueryRewrites      = 1
	defaultDiscussTopK        = 5
	defaultHistoryWindow      = 10
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int                   `yaml:"port"`
	Env            string                `yaml:"env"` // "development" | "production"
	Database       DatabaseRuntimeConfig `yaml:"database"`
	Redis          RedisRuntimeConfig    `yaml:"redis"`
	AI             AIConfig              `yaml:"ai"`
	Vector         VectorConfig          `yaml:"vector"`
	Retrieval      RetrievalConfig       `yaml:"retrieval"`
	Overview       OverviewConfig        `yaml:"overview"`
	Discuss        DiscussConfig         `yaml:"discuss"`
	Cache          CacheConfig           `yaml:"cache"`
	Translate      TranslateConfig       `yaml:"translate"`
	AllowedOrigins []string              `yaml:"allowed_origins"`
	LogDir         string                `yaml:"log_dir"`
}

type DatabaseRuntimeConfig struct {
	DSN       string            `yaml:"dsn"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	Charset   string            `yaml:"charset"`
	ParseTime bool              `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

type RedisRuntimeConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TLS      bool   `yaml:"tls"`
}

// AIConfig lists the configured model providers and assigns models to the
// generation tasks that need distinct ones.
type AIConfig struct {
	Providers []AIProvider       `yaml:"providers"`
	Chat      *AIModelAssignment `yaml:"chat_model"`
	Plan      *AIModelAssignment `yaml:"plan_model"`
	Rerank    *AIModelAssignment `yaml:"rerank_model"`
	Translate *AIModelAssignment `yaml:"translate_model"`
	Embedding *AIModelAssignment `yaml:"embedding_model"`
}

type AIProvider struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Type         string `yaml:"type"` // OpenAI | OpenAI-Compatible | Anthropic | OpenRouter
	APIKey       string `yaml:"api_key"`
	Endpoint     string `yaml:"endpoint"`
	DefaultModel string `yaml:"default_model"`
	Enabled      bool   `yaml:"enabled"`
}

type AIModelAssignment struct {
	ProviderID string `yaml:"provider_id"`
	Model      string `yaml:"model"`
}

// VectorConfig describes the searchable vector collections. The router
// consults Description when classifying a query to a collection.
type VectorConfig struct {
	Endpoint          string             `yaml:"endpoint"` // Milvus-compatible REST endpoint
	Token             string             `yaml:"token"`
	Collections       []VectorCollection `yaml:"collections"`
	DefaultCollection string             `yaml:"default_collection"`
}

type VectorCollection struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type RetrievalConfig struct {
	TopKPerSection int  `yaml:"top_k_per_section"` // raw hits fetched per collection
	TopKAccepted   int  `yaml:"top_k_accepted"`    // chunks kept after rerank
	QueryRewrites  int  `yaml:"query_rewrites"`    // retries when results are thin
	CleanChunks    bool `yaml:"clean_chunks"`      // extra model pass to strip chunk noise
	Concurrency    int  `yaml:"concurrency"`       // parallel collection searches
}

type OverviewConfig struct {
	SectionConcurrency int    `yaml:"section_concurrency"` // parallel section builds
	TargetLanguage     string `yaml:"target_language"`     // translation target code, "zh" or "en"
}

type DiscussConfig struct {
	SearchTopK     int    `yaml:"search_top_k"`    // retrieval hits per question
	HistoryWindow  int    `yaml:"history_window"`  // conversation turns fed to the model
	TargetLanguage string `yaml:"target_language"` // answer language code, "zh" or "en"
}

type CacheConfig struct {
	Days int `yaml:"days"` // freshness window for fingerprint cache hits
}

type TranslateConfig struct {
	DictDir      string `yaml:"dict_dir"`      // segmentation dictionary directory
	StopWordFile string `yaml:"stopword_file"` // optional stop word list
}

func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	cfg := defaultAppConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}

	normalizeAppConfig(&cfg)
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d in %q, expected 1-65535", cfg.Port, path)
	}
	if cfg.Database.Port < 1 || cfg.Database.Port > 65535 {
		return nil, fmt.Errorf("invalid database.port %d in %q, expected 1-65535", cfg.Database.Port, path)
	}
	if cfg.Redis.Port < 1 || cfg.Redis.Port > 65535 {
		return nil, fmt.Errorf("invalid redis.port %d in %q, expected 1-65535", cfg.Redis.Port, path)
	}
	if cfg.Redis.DB < 0 {
		return nil, fmt.Errorf("invalid redis.db %d in %q, expected >= 0", cfg.Redis.DB, path)
	}
	if err := validateAIConfig(cfg.AI, path); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaultAppConfig() AppConfig {
	return AppConfig{
		Port: defaultPort,
		Env:  defaultEnv,
		Database: DatabaseRuntimeConfig{
			Host:      defaultDBHost,
			Port:      defaultDBPort,
			User:      defaultDBUser,
			Password:  defaultDBPassword,
			Name:      defaultDBName,
			Charset:   defaultDBCharset,
			ParseTime: true,
			Loc:       defaultDBLoc,
		},
		Redis: RedisRuntimeConfig{
			Host: defaultRedisHost,
			Port: defaultRedisPort,
			DB:   defaultRedisDB,
		},
		Retrieval: RetrievalConfig{
			TopKPerSection: defaultTopKPerSection,
			TopKAccepted:   defaultTopKAccepted,
			QueryRewrites:  defaultQueryRewrites,
		},
		Cache: CacheConfig{Days: defaultCacheDays},
	}
}

func normalizeAppConfig(cfg *AppConfig) {
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	if cfg.Env == "" {
		cfg.Env = defaultEnv
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = defaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = defaultDBPort
	}
	if cfg.Redis.Host == "" && cfg.Redis.URL == "" {
		cfg.Redis.Host = defaultRedisHost
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = defaultRedisPort
	}
	if cfg.Retrieval.TopKPerSection <= 0 {
		cfg.Retrieval.TopKPerSection = defaultTopKPerSection
	}
	if cfg.Retrieval.TopKAccepted <= 0 {
		cfg.Retrieval.TopKAccepted = defaultTopKAccepted
	}
	if cfg.Retrieval.QueryRewrites < 0 {
		cfg.Retrieval.QueryRewrites = defaultQueryRewrites
	}
	if cfg.Retrieval.Concurrency <= 0 {
		cfg.Retrieval.Concurrency = defaultSectionConcurrency
	}
	if cfg.Overview.SectionConcurrency <= 0 {
		cfg.Overview.SectionConcurrency = defaultSectionConcurrency
	}
	if cfg.Overview.TargetLanguage == "" {
		cfg.Overview.TargetLanguage = "zh"
	}
	if cfg.Discuss.SearchTopK <= 0 {
		cfg.Discuss.SearchTopK = defaultDiscussTopK
	}
	if cfg.Discuss.HistoryWindow <= 0 {
		cfg.Discuss.HistoryWindow = defaultHistoryWindow
	}
	if cfg.Discuss.TargetLanguage == "" {
		cfg.Discuss.TargetLanguage = "zh"
	}
	if cfg.Cache.Days <= 0 {
		cfg.Cache.Days = defaultCacheDays
	}
	if cfg.Vector.DefaultCollection == "" && len(cfg.Vector.Collections) > 0 {
		cfg.Vector.DefaultCollection = cfg.Vector.Collections[0].Name
	}

	origins := make([]string, 0, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	cfg.AllowedOrigins = origins
}

func validateAIConfig(ai AIConfig, path string) error {
	ids := make(map[string]struct{}, len(ai.Providers))
	for i, p := range ai.Providers {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return fmt.Errorf("ai.providers[%d] in %q has no id", i, path)
		}
		if _, dup := ids[id]; dup {
			return fmt.Errorf("duplicate ai provider id %q in %q", id, path)
		}
		ids[id] = struct{}{}
	}
	for name, assign := range map[string]*AIModelAssignment{
		"chat_model":      ai.Chat,
		"plan_model":      ai.Plan,
		"rerank_model":    ai.Rerank,
		"translate_model": ai.Translate,
		"embedding_model": ai.Embedding,
	} {
		if assign == nil {
			continue
		}
		if _, ok := ids[strings.TrimSpace(assign.ProviderID)]; !ok {
			return fmt.Errorf("ai.%s in %q references unknown provider %q", name, path, assign.ProviderID)
		}
	}
	return nil
}

// Provider returns the enabled provider with the given id, or nil.
func (a AIConfig) Provider(id string) *AIProvider {
	for i := range a.Providers {
		if a.Providers[i].ID == id && a.Providers[i].Enabled {
			return &a.Providers[i]
		}
	}
	return nil
}

// DSNValue builds a MySQL DSN, preferring an explicit dsn field.
func (c DatabaseRuntimeConfig) DSNValue() string {
	if v := strings.TrimSpace(c.DSN); v != "" {
		return v
	}

	host := strings.TrimSpace(c.Host)
	if host == "" {
		host = defaultDBHost
	}
	port := c.Port
	if port == 0 {
		port = defaultDBPort
	}
	user := strings.TrimSpace(c.User)
	if user == "" {
		user = defaultDBUser
	}
	password := strings.TrimSpace(c.Password)
	if password == "" {
		password = defaultDBPassword
	}
	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = defaultDBName
	}
	charset := strings.TrimSpace(c.Charset)
	if charset == "" {
		charset = defaultDBCharset
	}
	loc := strings.TrimSpace(c.Loc)
	if loc == "" {
		loc = defaultDBLoc
	}

	params := neturl.Values{}
	for key, value := range c.Params {
		k := strings.TrimSpace(key)
		v := strings.TrimSpace(value)
		if k != "" && v != "" {
			params.Set(k, v)
		}
	}
	if params.Get("charset") == "" {
		params.Set("charset", charset)
	}
	if params.Get("parseTime") == "" {
		params.Set("parseTime", strconv.FormatBool(c.ParseTime))
	}
	if params.Get("loc") == "" {
		params.Set("loc", loc)
	}

	auth := user
	if password != "" {
		auth += ":" + password
	}
	dsn := fmt.Sprintf("%s@tcp(%s)/%s", auth, net.JoinHostPort(host, strconv.Itoa(port)), name)
	if query := params.Encode(); query != "" {
		dsn += "?" + query
	}
	return dsn
}

// URLValue builds a redis URL, preferring an explicit url field.
func (c RedisRuntimeConfig) URLValue() string {
	if trimmed := strings.TrimSpace(c.URL); trimmed != "" {
		if strings.HasPrefix(trimmed, "redis://") || strings.HasPrefix(trimmed, "rediss://") {
			return trimmed
		}
		return "redis://" + trimmed
	}

	host := strings.TrimSpace(c.Host)
	if host == "" {
		host = defaultRedisHost
	}
	port := c.Port
	if port == 0 {
		port = defaultRedisPort
	}
	db := c.DB
	if db < 0 {
		db = defaultRedisDB
	}

	scheme := "redis"
	if c.TLS {
		scheme = "rediss"
	}
	u := &neturl.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   "/" + strconv.Itoa(db),
	}
	username := strings.TrimSpace(c.Username)
	password := strings.TrimSpace(c.Password)
	if username != "" {
		if password != "" {
			u.User = neturl.UserPassword(username, password)
		} else {
			u.User = neturl.User(username)
		}
	} else if password != "" {
		u.User = neturl.UserPassword("", password)
	}
	return u.String()
}

func (c *AppConfig) IsDev() bool {
	return strings.EqualFold(c.Env, defaultEnv)
}

// EmbeddingProvider resolves the provider and model for embedding calls.
// Falls back to the first enabled provider when nothing is assigned.
func (c AIConfig) EmbeddingProvider() (*AIProvider, string) {
	var providerID, model string
	if c.Embedding != nil {
		providerID = strings.TrimSpace(c.Embedding.ProviderID)
		model = strings.TrimSpace(c.Embedding.Model)
	}

	if providerID != "" {
		for _, provider := range c.Providers {
			if provider.Enabled && strings.TrimSpace(provider.ID) == providerID {
				selected := provider
				return &selected, model
			}
		}
	}
	for _, provider := range c.Providers {
		if provider.Enabled {
			selected := provider
			return &selected, model
		}
	}
	return nil, model
}
