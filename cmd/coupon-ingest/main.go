// Command coupon-ingest imports promo codes from large gzip dumps.
//
// A code counts as valid when it appears in at least two of the dump files.
// The tool streams each file twice: pass one builds a bloom filter per file,
// pass two collects the codes that other files' filters also contain. Valid
// codes are inserted as percentage coupons; an optional rules file assigns
// specific discounts to known codes.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/velora/checkout/internal/domain/coupon"
	"github.com/velora/checkout/internal/repository"
)

const (
	bloomCapacity = 120_000_000
	bloomFPR      = 0.001
	numFiles      = 3
	progressEvery = 10_000_000
	minCodeLen    = 8
	maxCodeLen    = 10
)

// rule is the discount assigned to a known code. Codes without a rule get
// the default.
type rule struct {
	discount     int64
	validityDays int
}

var defaultRule = rule{discount: 10, validityDays: 30}

func main() {
	var (
		dataDir     string
		rulesFile   string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing couponbaseN.gz files")
	flag.StringVar(&rulesFile, "rules-file", "", "optional JSON file mapping codes to discount rules")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, rulesFile, databaseURL); err != nil {
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon ingest completed successfully")
}

func run(ctx context.Context, dataDir, rulesFile, databaseURL string) error {
	files := make([]string, numFiles)
	for i := range numFiles {
		files[i] = filepath.Join(dataDir, fmt.Sprintf("couponbase%d.gz", i+1))
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	rules := map[string]rule{}
	if rulesFile != "" {
		var err error
		if rules, err = loadRules(rulesFile); err != nil {
			return errors.Wrap(err, "load rules")
		}
		slog.Info("loaded rules", slog.Int("count", len(rules)))
	}

	slog.Info("pass 1: building bloom filters", slog.Int("files", numFiles))
	filters, err := buildBloomFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	slog.Info("pass 2: finding codes shared between files")
	validCodes, err := findValidCodes(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "find valid codes")
	}

	slog.Info("valid codes found", slog.Int("count", len(validCodes)))
	if len(validCodes) == 0 {
		return nil
	}

	slog.Info("connecting to database")
	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := writeCoupons(ctx, repository.NewCouponRepository(pool), validCodes, rules); err != nil {
		return errors.Wrap(err, "write coupons")
	}
	return nil
}

// loadRules parses a JSON object of the form
//
//	{"FIFTYOFF": {"discount": 50, "validityDays": 14}, ...}
func loadRules(path string) (map[string]rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}

	rules := make(map[string]rule)
	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, code string) error {
		r := defaultRule
		if err := d.Obj(func(d *jx.Decoder, field string) error {
			switch field {
			case "discount":
				v, err := d.Int64()
				if err != nil {
					return errors.Wrap(err, "discount")
				}
				r.discount = v
			case "validityDays":
				v, err := d.Int()
				if err != nil {
					return errors.Wrap(err, "validityDays")
				}
				r.validityDays = v
			default:
				return d.Skip()
			}
			return nil
		}); err != nil {
			return errors.Wrapf(err, "rule for %s", code)
		}
		if r.discount < 1 || r.discount > 100 {
			return errors.Errorf("rule for %s: discount %d out of range", code, r.discount)
		}
		rules[coupon.Normalize(code)] = r
		return nil
	}); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return rules, nil
}

func buildBloomFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(buildFilterForFile(ctx, i, f, filters))
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

func buildFilterForFile(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) func() error {
	return func() error {
		filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var count uint64

		if err := streamGzFile(ctx, path, func(code string) {
			if len(code) < minCodeLen || len(code) > maxCodeLen {
				return
			}
			filter.AddString(code)
			count++
			if count%progressEvery == 0 {
				slog.Info("pass 1 progress", slog.Int("file", idx+1), slog.Uint64("codes", count))
			}
		}); err != nil {
			return errors.Wrapf(err, "build filter for file %d", idx+1)
		}

		slog.Info("pass 1 complete", slog.Int("file", idx+1), slog.Uint64("total_codes", count))
		filters[idx] = filter
		return nil
	}
}

// findValidCodes re-streams each file and tests codes against the other
// files' filters. The per-file bitmask survives the merge so a code only
// counts once per file it appeared in.
func findValidCodes(ctx context.Context, files []string, filters []*bloom.BloomFilter) ([]string, error) {
	results := make([]map[string]uint, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(findCandidatesInFile(ctx, i, f, filters, results))
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint)
	for _, candidates := range results {
		for code, mask := range candidates {
			merged[code] |= mask
		}
	}

	var valid []string
	for code, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			valid = append(valid, code)
		}
	}
	return valid, nil
}

func findCandidatesInFile(
	ctx context.Context,
	idx int,
	path string,
	filters []*bloom.BloomFilter,
	results []map[string]uint,
) func() error {
	return func() error {
		candidates := make(map[string]uint)
		fileBit := uint(1) << uint(idx)
		var count uint64

		if err := streamGzFile(ctx, path, func(code string) {
			if len(code) < minCodeLen || len(code) > maxCodeLen {
				return
			}
			count++
			if count%progressEvery == 0 {
				slog.Info("pass 2 progress", slog.Int("file", idx+1), slog.Uint64("codes", count))
			}
			for j, f := range filters {
				if j == idx {
					continue
				}
				if f.TestString(code) {
					candidates[code] |= fileBit
					break
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "scan file %d for candidates", idx+1)
		}

		slog.Info("pass 2 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_codes", count),
			slog.Int("candidates", len(candidates)),
		)
		results[idx] = candidates
		return nil
	}
}

func streamGzFile(ctx context.Context, path string, fn func(code string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}

func writeCoupons(ctx context.Context, repo *repository.CouponRepository, codes []string, rules map[string]rule) error {
	slog.Info("writing coupons to database", slog.Int("count", len(codes)))

	now := time.Now()
	written := 0
	for i, raw := range codes {
		code := coupon.Normalize(raw)
		if err := coupon.ValidateCode(code); err != nil {
			slog.Warn("skipping malformed code", slog.String("code", raw))
			continue
		}

		r, ok := rules[code]
		if !ok {
			r = defaultRule
		}

		c := &coupon.Coupon{
			Code:            code,
			DiscountPercent: decimal.NewFromInt(r.discount),
			Active:          true,
			ExpiresAt:       now.Add(time.Duration(r.validityDays) * 24 * time.Hour),
		}
		if err := repo.Create(ctx, c); err != nil {
			if errors.Is(err, coupon.ErrConflict) {
				continue
			}
			return errors.Wrapf(err, "create coupon %s", code)
		}
		written++

		if (i+1)%100 == 0 || i+1 == len(codes) {
			slog.Info("write progress", slog.Int("processed", i+1), slog.Int("written", written))
		}
	}

	slog.Info("write complete", slog.Int("written", written))
	return nil
}
