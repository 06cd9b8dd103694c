package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
    "time"    // time expresses the matching and voting windows
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Connection and secret values are required;
// matching tunables fall back to the documented defaults so a bare
// deployment behaves like the reference setup.
type Config struct {
    Env            string // application environment (e.g. "dev", "prod")
    Port           string // HTTP port to listen on
    DBUser         string // database username
    DBPass         string // database password (optional)
    DBHost         string // database host address
    DBPort         string // database port number
    DBName         string // database name
    JWTSecret      string // secret used to sign JWTs
    AccessTTLMin   int    // access token time-to-live in minutes
    RefreshTTLDays int    // refresh token time-to-live in days
    BcryptCost     int    // bcrypt cost for password hashing

    RoomWindow         time.Duration // how long a waiting room stays open
    VotingWindow       time.Duration // how long a group may vote
    MaxRoomMembers     int           // room capacity (2-10)
    MinGroupSize       int           // members needed to convert an expired room
    MinMatchScore      int           // minimum compatibility score to join a room
    RoomSweepInterval  time.Duration // period of the expired-room sweep
    GroupSweepInterval time.Duration // period of the expired-group sweep
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
    cfg := Config{
        Env:            must("APP_ENV"),      // environment (dev/test/prod)
        Port:           must("APP_PORT"),     // port to bind the HTTP server
        DBUser:         must("DB_USER"),      // database user
        DBPass:         os.Getenv("DB_PASS"), // database password (empty allowed)
        DBHost:         must("DB_HOST"),      // database host
        DBPort:         must("DB_PORT"),      // database port
        DBName:         must("DB_NAME"),      // database name
        JWTSecret:      must("JWT_SECRET"),   // secret used for signing JWTs
        AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
        RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
        BcryptCost:     mustInt("BCRYPT_COST"),

        RoomWindow:         durOr("ROOM_WINDOW", 2*time.Minute),
        VotingWindow:       durOr("VOTING_WINDOW", 30*time.Minute),
        MaxRoomMembers:     intOr("MAX_ROOM_MEMBERS", 10),
        MinGroupSize:       intOr("MIN_GROUP_SIZE", 2),
        MinMatchScore:      intOr("MIN_MATCH_SCORE", 30),
        RoomSweepInterval:  durOr("ROOM_SWEEP_INTERVAL", time.Minute),
        GroupSweepInterval: durOr("GROUP_SWEEP_INTERVAL", 2*time.Minute),
    }
    if cfg.MaxRoomMembers < 2 {
        cfg.MaxRoomMembers = 2
    }
    if cfg.MaxRoomMembers > 10 {
        cfg.MaxRoomMembers = 10
    }
    if cfg.MinGroupSize < 2 {
        cfg.MinGroupSize = 2
    }
    return cfg
}

// must retrieves the value of a required environment variable.  If the
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

// intOr reads an optional integer variable, falling back to def when the
// variable is unset or malformed.
func intOr(key string, def int) int {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    n, err := strconv.Atoi(v)
    if err != nil {
        log.Printf("invalid int for %s: %q, using default %d", key, v, def)
        return def
    }
    return n
}

// durOr reads an optional duration variable ("90s", "2m"), falling back to
// def when the variable is unset or malformed.
func durOr(key string, def time.Duration) time.Duration {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    d, err := time.ParseDuration(v)
    if err != nil {
        log.Printf("invalid duration for %s: %q, using default %s", key, v, def)
        return def
    }
    return d
}
