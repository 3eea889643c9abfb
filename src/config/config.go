package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	LogLevel   string
	ReportDir  string
	TaxYear    int
	HTTPTimeout time.Duration

	// Per-exchange export files. An empty path disables that source.
	BlockFiCSVPath     string
	CoinbaseCSVPath    string
	CoinbaseProCSVPath string
	KrakenCSVPath      string
	UpholdCSVPath      string

	// Price oracle settings.
	OracleBaseURL    string
	OracleAPIKeyPath string
	OracleRatePerSec float64

	// Optional on-disk cache of fetched price histories. Empty disables it.
	PriceCacheDBPath string
}

var Cfg *AppConfig

func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		log.Println("Info: No .env file found or error loading .env file. Relying on OS environment variables and defaults. Error (if any):", errEnv)
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	taxYearStr := getEnv("TAX_YEAR", strconv.Itoa(time.Now().Year()-1))
	taxYear, err := strconv.Atoi(taxYearStr)
	if err != nil {
		log.Printf("WARNING: Invalid TAX_YEAR format '%s'. Using previous calendar year. Error: %v", taxYearStr, err)
		taxYear = time.Now().Year() - 1
	}

	httpTimeoutStr := getEnv("HTTP_TIMEOUT", "20s")
	httpTimeout, err := time.ParseDuration(httpTimeoutStr)
	if err != nil {
		log.Printf("WARNING: Invalid HTTP_TIMEOUT format '%s'. Using default 20s. Error: %v", httpTimeoutStr, err)
		httpTimeout = 20 * time.Second
	}

	oracleRateStr := getEnv("ORACLE_RATE_PER_SEC", "4")
	oracleRate, err := strconv.ParseFloat(oracleRateStr, 64)
	if err != nil || oracleRate <= 0 {
		log.Printf("WARNING: Invalid ORACLE_RATE_PER_SEC '%s'. Using default 4. Error: %v", oracleRateStr, err)
		oracleRate = 4
	}

	Cfg = &AppConfig{
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		ReportDir:   getEnv("REPORT_DIR", "reports"),
		TaxYear:     taxYear,
		HTTPTimeout: httpTimeout,

		BlockFiCSVPath:     getEnv("BLOCKFI_CSV_PATH", "data/blockfi_transaction_report_all.csv"),
		CoinbaseCSVPath:    getEnv("COINBASE_CSV_PATH", "data/coinbase-alltime-transactions.csv"),
		CoinbaseProCSVPath: getEnv("COINBASE_PRO_CSV_PATH", "data/coinbase-pro-account.csv"),
		KrakenCSVPath:      getEnv("KRAKEN_CSV_PATH", "data/kraken-ledgers-alltime.csv"),
		UpholdCSVPath:      getEnv("UPHOLD_CSV_PATH", "data/uphold-transaction-history.csv"),

		OracleBaseURL:    getEnv("ORACLE_BASE_URL", "https://api.coinranking.com/v2"),
		OracleAPIKeyPath: getEnv("ORACLE_API_KEY_PATH", ".apikey"),
		OracleRatePerSec: oracleRate,

		PriceCacheDBPath: getEnv("PRICE_CACHE_DB_PATH", ""),
	}

	log.Printf("Configuration loaded: ReportDir=%s, LogLevel=%s, TaxYear=%d, OracleBaseURL=%s",
		Cfg.ReportDir, Cfg.LogLevel, Cfg.TaxYear, Cfg.OracleBaseURL)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}
