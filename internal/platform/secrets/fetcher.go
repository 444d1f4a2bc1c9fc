package secrets

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultVersion      = "latest"
	defaultFallbackPath = ".secrets.local"
)

var clientFactory = func(ctx context.Context, opts ...option.ClientOption) (*secretmanager.Client, error) {
	return secretmanager.NewClient(ctx, opts...)
}

type secretManagerClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Fetcher resolves secret:// references using Google Secret Manager with
// in-memory caching and an optional local fallback file for development.
type Fetcher struct {
	client     secretManagerClient
	ownsClient bool

	logger         *zap.Logger
	defaultProject string
	fallbackPath   string

	fallbackOnce sync.Once
	fallbackVals map[string]string
	fallbackErr  error

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	value     string
	fetchedAt time.Time
}

type fetcherConfig struct {
	logger         *zap.Logger
	defaultProject string
	fallbackPath   string
	client         secretManagerClient
	clientOpts     []option.ClientOption
}

// Option customises Fetcher construction.
type Option func(*fetcherConfig)

// WithLogger sets the logger used for diagnostic output.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *fetcherConfig) {
		cfg.logger = logger
	}
}

// WithDefaultProject configures the project ID used for short secret references.
func WithDefaultProject(projectID string) Option {
	return func(cfg *fetcherConfig) {
		cfg.defaultProject = strings.TrimSpace(projectID)
	}
}

// WithFallbackFile overrides the path to the local fallback secrets file.
func WithFallbackFile(path string) Option {
	return func(cfg *fetcherConfig) {
		cfg.fallbackPath = strings.TrimSpace(path)
	}
}

// WithSecretManagerClient injects a preconfigured Secret Manager client (primarily for tests).
func WithSecretManagerClient(client secretManagerClient) Option {
	return func(cfg *fetcherConfig) {
		cfg.client = client
	}
}

// WithClientOptions forwards Cloud client options when constructing the Secret Manager client.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(cfg *fetcherConfig) {
		cfg.clientOpts = append(cfg.clientOpts, opts...)
	}
}

// NewFetcher builds a Fetcher with caching and local fallback support. When
// the Secret Manager client cannot be constructed the fetcher degrades to
// fallback-only mode instead of failing startup.
func NewFetcher(ctx context.Context, opts ...Option) (*Fetcher, error) {
	cfg := fetcherConfig{
		logger:       zap.NewNop(),
		fallbackPath: defaultFallbackPath,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	f := &Fetcher{
		logger:         cfg.logger,
		defaultProject: cfg.defaultProject,
		fallbackPath:   cfg.fallbackPath,
		cache:          make(map[string]cacheEntry),
	}

	if cfg.client != nil {
		f.client = cfg.client
	} else {
		client, err := clientFactory(ctx, cfg.clientOpts...)
		if err != nil {
			cfg.logger.Warn("secrets: secret manager client unavailable; operating in fallback mode", zap.Error(err))
		} else {
			f.client = client
			f.ownsClient = true
		}
	}

	return f, nil
}

// Close releases resources held by the fetcher.
func (f *Fetcher) Close() error {
	if f.ownsClient && f.client != nil {
		return f.client.Close()
	}
	return nil
}

// ResolveSecret retrieves the secret value for the supplied reference,
// consulting cache and the fallback file as needed. It satisfies
// config.SecretResolver.
func (f *Fetcher) ResolveSecret(ctx context.Context, ref string) (string, error) {
	parsed, err := parseReference(ref, f.defaultProject)
	if err != nil {
		return "", err
	}

	if value, ok := f.lookupCache(parsed.resourceName()); ok {
		return value, nil
	}

	if f.client != nil && parsed.project != "" {
		value, fetchErr := f.fetchRemote(ctx, parsed)
		if fetchErr == nil {
			f.storeCache(parsed.resourceName(), value)
			return value, nil
		}
		if !isFallbackError(fetchErr) {
			return "", fmt.Errorf("secrets: fetch failed for %s: %w", parsed.canonical, fetchErr)
		}
		f.logger.Debug("secrets: falling back to local secrets", zap.String("ref", parsed.canonical), zap.Error(fetchErr))
	}

	value, ok := f.lookupFallback(parsed.secret)
	if !ok {
		return "", fmt.Errorf("secrets: fallback value not found for %s", parsed.canonical)
	}
	f.storeCache(parsed.resourceName(), value)
	return value, nil
}

func (f *Fetcher) fetchRemote(ctx context.Context, ref parsedReference) (string, error) {
	resp, err := f.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: ref.resourceName(),
	})
	if err != nil {
		return "", err
	}
	if resp == nil || resp.Payload == nil {
		return "", fmt.Errorf("secret manager returned empty payload for %s", ref.resourceName())
	}
	return string(resp.Payload.GetData()), nil
}

func (f *Fetcher) lookupCache(key string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	entry, ok := f.cache[key]
	if !ok {
		return "", false
	}
	return entry.value, true
}

func (f *Fetcher) storeCache(key, value string) {
	f.mu.Lock()
	f.cache[key] = cacheEntry{value: value, fetchedAt: time.Now()}
	f.mu.Unlock()
}

// Invalidate clears cached values for the supplied reference.
func (f *Fetcher) Invalidate(ref string) {
	parsed, err := parseReference(ref, f.defaultProject)
	if err != nil {
		return
	}
	f.mu.Lock()
	delete(f.cache, parsed.resourceName())
	f.mu.Unlock()
}

func (f *Fetcher) lookupFallback(secret string) (string, bool) {
	f.fallbackOnce.Do(func() {
		f.fallbackVals, f.fallbackErr = loadFallbackFile(f.fallbackPath)
		if f.fallbackErr != nil {
			f.logger.Warn("secrets: unable to read fallback file", zap.Error(f.fallbackErr))
		}
	})
	value, ok := f.fallbackVals[secret]
	return value, ok
}

func loadFallbackFile(path string) (map[string]string, error) {
	values := make(map[string]string)
	if path == "" {
		return values, nil
	}

	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return values, nil
	}
	if err != nil {
		return values, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		if key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(parts[1]), "\"'")
	}
	return values, scanner.Err()
}

func isFallbackError(err error) bool {
	switch status.Code(err) {
	case codes.NotFound, codes.PermissionDenied, codes.Unauthenticated, codes.Unavailable:
		return true
	default:
		return false
	}
}

type parsedReference struct {
	canonical string
	project   string
	secret    string
	version   string
}

func (r parsedReference) resourceName() string {
	return fmt.Sprintf("projects/%s/secrets/%s/versions/%s", r.project, r.secret, r.version)
}

// parseReference accepts either a fully qualified reference
// (secret://projects/<p>/secrets/<s>/versions/<v>) or a short name
// (secret://<name>[@version]) resolved against the default project.
func parseReference(ref, defaultProject string) (parsedReference, error) {
	trimmed := strings.TrimSpace(ref)
	if strings.HasPrefix(trimmed, "sm://") {
		trimmed = "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	if !strings.HasPrefix(trimmed, "secret://") {
		return parsedReference{}, fmt.Errorf("secrets: unsupported reference %q", ref)
	}

	body := strings.TrimPrefix(trimmed, "secret://")
	if body == "" {
		return parsedReference{}, fmt.Errorf("secrets: empty reference %q", ref)
	}

	parsed := parsedReference{canonical: trimmed, version: defaultVersion}

	parts := strings.Split(body, "/")
	if len(parts) >= 4 && parts[0] == "projects" && parts[2] == "secrets" {
		parsed.project = parts[1]
		parsed.secret = parts[3]
		if len(parts) >= 6 && parts[4] == "versions" {
			parsed.version = parts[5]
		}
	} else {
		name := body
		if at := strings.LastIndex(name, "@"); at > 0 {
			parsed.version = name[at+1:]
			name = name[:at]
		}
		parsed.project = defaultProject
		parsed.secret = name
	}

	if parsed.secret == "" {
		return parsedReference{}, fmt.Errorf("secrets: missing secret name in %q", ref)
	}
	return parsed, nil
}
