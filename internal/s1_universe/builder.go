package s1_universe

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/wonny/rsscreen/internal/contracts"
	"github.com/wonny/rsscreen/pkg/logger"
	"github.com/wonny/rsscreen/pkg/redis"
)

// Source 유니버스 출처
type Source string

const (
	SourceFile     Source = "file"
	SourceIndex    Source = "index"
	SourceDatabase Source = "database"
)

// Exclusion reasons
const (
	ReasonBenchmark = "benchmark"
	ReasonCapped    = "max_tickers"
	ReasonInvalid   = "invalid ticker"
)

// Config holds universe assembly options
type Config struct {
	Source           Source   `yaml:"source"`
	File             string   `yaml:"file"`
	Indexes          []string `yaml:"indexes"`
	MaxTickers       int      `yaml:"max_tickers"` // 0 = 제한 없음
	Benchmark        string   `yaml:"benchmark"`
	ExcludeBenchmark bool     `yaml:"exclude_benchmark"`
	ActiveSinceDays  int      `yaml:"active_since_days"` // database 소스: 최근 N일 내 시세가 있는 종목
}

// IndexSource lists index constituents (wikipedia.Client)
type IndexSource interface {
	Constituents(ctx context.Context, index string) ([]contracts.Security, error)
}

// ActiveSource lists tickers with stored prices (s0_data.PriceRepository)
type ActiveSource interface {
	ActiveTickers(ctx context.Context, since time.Time) ([]string, error)
}

// Cache is the subset of redis.Cache used for constituent lists
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Builder constructs the screening universe
type Builder struct {
	config  Config
	indexes IndexSource
	active  ActiveSource
	cache   Cache
	logger  *logger.Logger
}

// NewBuilder creates a new Universe Builder
func NewBuilder(config Config, log *logger.Logger) *Builder {
	if config.ActiveSinceDays <= 0 {
		config.ActiveSinceDays = 10
	}
	return &Builder{
		config: config,
		logger: log.WithField("module", "s1_universe"),
	}
}

// WithIndexSource sets the constituent source for SourceIndex
func (b *Builder) WithIndexSource(src IndexSource) *Builder {
	b.indexes = src
	return b
}

// WithActiveSource sets the repository for SourceDatabase
func (b *Builder) WithActiveSource(src ActiveSource) *Builder {
	b.active = src
	return b
}

// WithCache caches index constituents for a day
func (b *Builder) WithCache(cache Cache) *Builder {
	b.cache = cache
	return b
}

// Build assembles the universe as of a date
// ⭐ SSOT: S1 유니버스 생성 (대문자, 중복 제거, 정렬)
func (b *Builder) Build(ctx context.Context, asOf time.Time) (*contracts.Universe, error) {
	var (
		raw []contracts.Security
		err error
	)

	switch b.config.Source {
	case SourceFile:
		raw, err = ReadTickerFile(b.config.File)
	case SourceIndex:
		raw, err = b.fromIndexes(ctx)
	case SourceDatabase:
		raw, err = b.fromDatabase(ctx, asOf)
	default:
		return nil, fmt.Errorf("unknown universe source %q", b.config.Source)
	}
	if err != nil {
		return nil, fmt.Errorf("load universe (%s): %w", b.config.Source, err)
	}

	universe := b.normalize(raw)
	universe.Date = contracts.DateOf(asOf)

	if universe.Count() == 0 {
		return nil, fmt.Errorf("universe is empty (source %s)", b.config.Source)
	}

	b.logger.WithFields(map[string]interface{}{
		"source":   b.config.Source,
		"count":    universe.Count(),
		"excluded": len(universe.Excluded),
	}).Info("Universe built")

	return universe, nil
}

// normalize upper-cases, de-duplicates and sorts tickers.
// The first occurrence of a ticker keeps its metadata.
func (b *Builder) normalize(raw []contracts.Security) *contracts.Universe {
	universe := &contracts.Universe{
		Securities: make([]contracts.Security, 0, len(raw)),
		Excluded:   make(map[string]string),
	}
	benchmark := NormalizeTicker(b.config.Benchmark)

	seen := make(map[string]bool, len(raw))
	for _, sec := range raw {
		ticker := NormalizeTicker(sec.Ticker)
		if ticker == "" {
			continue
		}
		if !validTicker(ticker) {
			universe.Excluded[ticker] = ReasonInvalid
			continue
		}
		if seen[ticker] {
			continue
		}
		seen[ticker] = true

		if b.config.ExcludeBenchmark && ticker == benchmark {
			universe.Excluded[ticker] = ReasonBenchmark
			continue
		}

		sec.Ticker = ticker
		universe.Securities = append(universe.Securities, sec)
	}

	sort.Slice(universe.Securities, func(i, j int) bool {
		return universe.Securities[i].Ticker < universe.Securities[j].Ticker
	})

	if limit := b.config.MaxTickers; limit > 0 && len(universe.Securities) > limit {
		for _, sec := range universe.Securities[limit:] {
			universe.Excluded[sec.Ticker] = ReasonCapped
		}
		universe.Securities = universe.Securities[:limit]
	}

	return universe
}

// fromIndexes merges constituents of every configured index in order
func (b *Builder) fromIndexes(ctx context.Context) ([]contracts.Security, error) {
	if b.indexes == nil {
		return nil, fmt.Errorf("index source not configured")
	}
	if len(b.config.Indexes) == 0 {
		return nil, fmt.Errorf("no indexes configured")
	}

	var all []contracts.Security
	for _, index := range b.config.Indexes {
		members, err := b.constituents(ctx, index)
		if err != nil {
			return nil, err
		}
		all = append(all, members...)
	}
	return all, nil
}

func (b *Builder) constituents(ctx context.Context, index string) ([]contracts.Security, error) {
	key := redis.UniverseKey(index)
	if b.cache != nil {
		var cached []contracts.Security
		found, err := b.cache.Get(ctx, key, &cached)
		if err != nil {
			b.logger.WithError(err).Warn("Universe cache read failed")
		} else if found && len(cached) > 0 {
			return cached, nil
		}
	}

	members, err := b.indexes.Constituents(ctx, index)
	if err != nil {
		return nil, err
	}

	if b.cache != nil {
		if err := b.cache.Set(ctx, key, members, redis.TTLDaily); err != nil {
			b.logger.WithError(err).Warn("Universe cache write failed")
		}
	}
	return members, nil
}

func (b *Builder) fromDatabase(ctx context.Context, asOf time.Time) ([]contracts.Security, error) {
	if b.active == nil {
		return nil, fmt.Errorf("price repository not configured")
	}
	since := contracts.DateOf(asOf).AddDate(0, 0, -b.config.ActiveSinceDays)
	tickers, err := b.active.ActiveTickers(ctx, since)
	if err != nil {
		return nil, err
	}

	out := make([]contracts.Security, len(tickers))
	for i, t := range tickers {
		out[i] = contracts.Security{Ticker: t, Universe: string(SourceDatabase)}
	}
	return out, nil
}

// ReadTickerFile reads a universe file
func ReadTickerFile(path string) ([]contracts.Security, error) {
	if path == "" {
		return nil, fmt.Errorf("universe file not configured")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseTickerList(f)
}

// ParseTickerList accepts two layouts:
//
//	AAPL            한 줄에 티커 하나 (# 주석, 빈 줄 무시)
//	ticker,sector,industry   CSV 헤더가 있으면 컬럼 이름으로 매핑
func ParseTickerList(r io.Reader) ([]contracts.Security, error) {
	br := bufio.NewReader(r)
	first, err := br.Peek(512)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, err
	}
	head := strings.ToLower(strings.SplitN(string(first), "\n", 2)[0])
	if strings.Contains(head, ",") && (strings.Contains(head, "ticker") || strings.Contains(head, "symbol")) {
		return parseTickerCSV(br)
	}

	var out []contracts.Security
	scanner := bufio.NewScanner(br)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, contracts.Security{Ticker: line, Universe: string(SourceFile)})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseTickerCSV(r io.Reader) ([]contracts.Security, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	tickerCol, sectorCol, industryCol := -1, -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "ticker", "symbol":
			tickerCol = i
		case "sector":
			sectorCol = i
		case "industry":
			industryCol = i
		}
	}
	if tickerCol < 0 {
		return nil, fmt.Errorf("no ticker column in header %v", header)
	}

	var out []contracts.Security
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		sec := contracts.Security{Ticker: rec[tickerCol], Universe: string(SourceFile)}
		if sectorCol >= 0 && sectorCol < len(rec) {
			sec.Sector = strings.TrimSpace(rec[sectorCol])
		}
		if industryCol >= 0 && industryCol < len(rec) {
			sec.Industry = strings.TrimSpace(rec[industryCol])
		}
		out = append(out, sec)
	}
	return out, nil
}

// NormalizeTicker trims and upper-cases a ticker
func NormalizeTicker(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}

// validTicker accepts letters, digits and the separators used by US listings (BRK.B, BF-B, ^GSPC)
func validTicker(t string) bool {
	for _, r := range t {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.' || r == '-' || r == '^' || r == '/':
		default:
			return false
		}
	}
	return true
}
