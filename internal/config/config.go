package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable. The configuration is loaded once in main and
// passed explicitly to every constructor that needs it; nothing in the
// application reads ambient global state.
type Config struct {
	Env       string // application environment (e.g. "dev", "prod")
	Port      string // HTTP port to listen on
	DBUser    string // database username
	DBPass    string // database password (optional)
	DBHost    string // database host address
	DBPort    string // database port number
	DBName    string // database name
	JWTSecret string // secret used to sign JWTs

	AccessTTLMin int // access token time-to-live in minutes
	BcryptCost   int // bcrypt cost for password hashing

	// Payment gateway collaborator. The webhook secret is used to verify
	// HMAC signatures on inbound callbacks; the API key authenticates
	// outbound session/schedule calls.
	GatewayBaseURL       string // base URL of the payment gateway API
	GatewayAPIKey        string // bearer key for outbound gateway calls
	GatewayWebhookSecret string // shared secret for webhook signature checks

	// Checkout engine settings.
	Currency           string // ISO 4217 code used for all amounts
	CheckoutTTLMin     int    // minutes before an unpaid checkout is swept to EXPIRED
	LodgingDiscountPct int    // percent discount on pay-now checkouts that include lodging
}

// Load reads configuration values from environment variables and returns a
// Config. Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:       must("APP_ENV"),
		Port:      must("APP_PORT"),
		DBUser:    must("DB_USER"),
		DBPass:    os.Getenv("DB_PASS"), // empty password allowed
		DBHost:    must("DB_HOST"),
		DBPort:    must("DB_PORT"),
		DBName:    must("DB_NAME"),
		JWTSecret: must("JWT_SECRET"),

		AccessTTLMin: mustInt("ACCESS_TOKEN_TTL_MIN"),
		BcryptCost:   mustInt("BCRYPT_COST"),

		GatewayBaseURL:       must("GATEWAY_BASE_URL"),
		GatewayAPIKey:        must("GATEWAY_API_KEY"),
		GatewayWebhookSecret: must("GATEWAY_WEBHOOK_SECRET"),

		Currency:           envStr("CURRENCY", "EUR"),
		CheckoutTTLMin:     envInt("CHECKOUT_TTL_MIN", 30),
		LodgingDiscountPct: envInt("LODGING_DISCOUNT_PCT", 10),
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// envStr returns the value of an optional environment variable or the
// provided default when it is unset or empty.
func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envInt is like envStr for integer variables. Unparseable values fall
// back to the default rather than halting startup.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
