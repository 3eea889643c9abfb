package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"sort"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/username/cryptotaxes/backend/src/database"
	"github.com/username/cryptotaxes/backend/src/logger"
	"github.com/username/cryptotaxes/backend/src/models"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

const (
	// Per-run memoization of the coin listing and per-asset histories. One
	// oracle round trip per (asset, missing-price) symbol, never more.
	ckCoinListing  = "oracle_coin_listing"
	ckAssetHistory = "oracle_history_%s"

	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute

	// historyPeriod is the span of history requested per asset.
	historyPeriod = "5y"
)

// symbolAliases maps canonical symbols onto the oracle's listing symbol where
// they differ (the oracle lists wrapped LUNA).
var symbolAliases = map[string]string{
	"LUNA": "WLUNA",
}

// Structs for coinranking v2 API responses.
type coinListingResponse struct {
	Data struct {
		Coins []struct {
			UUID   string `json:"uuid"`
			Symbol string `json:"symbol"`
		} `json:"coins"`
	} `json:"data"`
}

type coinHistoryResponse struct {
	Data struct {
		History []struct {
			Price     *string `json:"price"`
			Timestamp int64   `json:"timestamp"`
		} `json:"history"`
	} `json:"data"`
}

// priceServiceImpl implements the PriceService interface against a
// coinranking-shaped oracle.
type priceServiceImpl struct {
	httpClient http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
	runCache   *cache.Cache
	store      *database.PriceStore // nil when the on-disk cache is disabled
}

// NewPriceService creates a price service for the given oracle endpoint.
// Requests are paced by ratePerSec; store may be nil.
func NewPriceService(baseURL, apiKey string, timeout time.Duration, ratePerSec float64, store *database.PriceStore) PriceService {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		logger.L.Error("Failed to create cookie jar", "error", err)
	}

	return &priceServiceImpl{
		httpClient: http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
		baseURL:  baseURL,
		apiKey:   apiKey,
		limiter:  rate.NewLimiter(rate.Limit(ratePerSec), 1),
		runCache: cache.New(DefaultCacheExpiration, CacheCleanupInterval),
		store:    store,
	}
}

// ResolveSpotPrice returns the most recent known price strictly before the
// given time, skipping null samples.
func (s *priceServiceImpl) ResolveSpotPrice(symbol string, at time.Time) (decimal.Decimal, error) {
	samples, err := s.history(symbol)
	if err != nil {
		return decimal.Zero, err
	}
	for _, sample := range samples {
		if sample.Timestamp.Before(at) && sample.Price.Valid {
			return sample.Price.Decimal, nil
		}
	}
	return decimal.Zero, fmt.Errorf("%w: no %s price before %s", ErrPriceResolution, symbol, at.Format(time.RFC3339))
}

// history returns the asset's price samples, newest first. Lookup order:
// per-run cache, on-disk cache, oracle.
func (s *priceServiceImpl) history(symbol string) ([]models.PriceSample, error) {
	cacheKey := fmt.Sprintf(ckAssetHistory, symbol)
	if cached, found := s.runCache.Get(cacheKey); found {
		return cached.([]models.PriceSample), nil
	}

	if s.store != nil {
		samples, err := s.store.LoadHistory(symbol)
		if err != nil {
			logger.L.Warn("Price cache read failed, falling back to oracle", "symbol", symbol, "error", err)
		} else if len(samples) > 0 {
			sortNewestFirst(samples)
			s.runCache.Set(cacheKey, samples, cache.DefaultExpiration)
			return samples, nil
		}
	}

	uuid, err := s.resolveUUID(symbol)
	if err != nil {
		return nil, err
	}

	var response coinHistoryResponse
	url := fmt.Sprintf("%s/coin/%s/history?timePeriod=%s", s.baseURL, uuid, historyPeriod)
	if err := s.getJSON(url, &response); err != nil {
		return nil, fmt.Errorf("failed to fetch %s price history: %w", symbol, err)
	}

	samples := make([]models.PriceSample, 0, len(response.Data.History))
	for _, h := range response.Data.History {
		sample := models.PriceSample{Timestamp: time.Unix(h.Timestamp, 0).UTC()}
		if h.Price != nil {
			price, err := decimal.NewFromString(*h.Price)
			if err != nil {
				return nil, fmt.Errorf("%w: malformed %s price sample %q", ErrPriceResolution, symbol, *h.Price)
			}
			sample.Price = decimal.NewNullDecimal(price)
		}
		samples = append(samples, sample)
	}
	sortNewestFirst(samples)

	if s.store != nil {
		if err := s.store.SaveHistory(symbol, samples); err != nil {
			logger.L.Warn("Price cache write failed", "symbol", symbol, "error", err)
		}
	}
	s.runCache.Set(cacheKey, samples, cache.DefaultExpiration)
	logger.L.Info("Fetched price history", "symbol", symbol, "samples", len(samples))
	return samples, nil
}

// resolveUUID maps a canonical symbol onto the oracle's coin identifier.
func (s *priceServiceImpl) resolveUUID(symbol string) (string, error) {
	listing, err := s.coinListing()
	if err != nil {
		return "", err
	}
	lookup := symbol
	if alias, ok := symbolAliases[symbol]; ok {
		lookup = alias
	}
	uuid, ok := listing[lookup]
	if !ok {
		return "", fmt.Errorf("%w: no oracle mapping for symbol %s", ErrPriceResolution, symbol)
	}
	return uuid, nil
}

// coinListing fetches the oracle's symbol-to-uuid listing once per run. The
// first listed coin wins for a duplicated symbol, matching oracle ranking.
func (s *priceServiceImpl) coinListing() (map[string]string, error) {
	if cached, found := s.runCache.Get(ckCoinListing); found {
		return cached.(map[string]string), nil
	}

	var response coinListingResponse
	if err := s.getJSON(s.baseURL+"/coins?limit=5000", &response); err != nil {
		return nil, fmt.Errorf("failed to fetch oracle coin listing: %w", err)
	}

	listing := make(map[string]string, len(response.Data.Coins))
	for _, coin := range response.Data.Coins {
		if _, seen := listing[coin.Symbol]; !seen {
			listing[coin.Symbol] = coin.UUID
		}
	}
	s.runCache.Set(ckCoinListing, listing, cache.DefaultExpiration)
	logger.L.Info("Fetched oracle coin listing", "coins", len(listing))
	return listing, nil
}

func (s *priceServiceImpl) getJSON(url string, out any) error {
	if err := s.limiter.Wait(context.Background()); err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("x-access-token", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("oracle returned non-OK status %d for %s", resp.StatusCode, url)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func sortNewestFirst(samples []models.PriceSample) {
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Timestamp.After(samples[j].Timestamp)
	})
}

// BackfillPrices resolves the spot price for every record that lacks one.
// A resolution failure is fatal for the run.
func BackfillPrices(txs []models.Transaction, prices PriceService) ([]models.Transaction, error) {
	out := make([]models.Transaction, len(txs))
	for i, tx := range txs {
		if !tx.SpotPrice.Valid {
			price, err := prices.ResolveSpotPrice(tx.Asset, tx.Timestamp)
			if err != nil {
				return nil, err
			}
			tx.SpotPrice = decimal.NewNullDecimal(price)
		}
		out[i] = tx
	}
	return out, nil
}
