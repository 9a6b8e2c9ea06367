package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type LogConfig struct {
	Level    string
	Format   string
	Output   string
	FilePath string
}

// ShopConfig is everything the candyshop CLI needs to reach one shop.
// Zero ProgramID and TreasuryMint leave the shop client defaults in place.
type ShopConfig struct {
	Cluster                       string
	RPCURL                        string
	WSURL                         string
	Commitment                    rpc.CommitmentType
	KeypairPath                   string
	ProgramID                     solana.PublicKey
	Creator                       solana.PublicKey
	TreasuryMint                  solana.PublicKey
	TreasuryDecimals              uint8
	AllowBidlessCancel            bool
	BatchSize                     int
	BatchDelay                    time.Duration
	ComputeUnitLimit              uint32
	ComputeUnitPriceMicroLamports uint64
	SkipPreflight                 bool
	MaxRetries                    *uint
	TxTimeout                     time.Duration
	WatchReconnectFloor           time.Duration
	JournalDriver                 string
	JournalDSN                    string
	Log                           LogConfig
}

const defaultCluster = "devnet"

var clusters = map[string]rpc.Cluster{
	"mainnet-beta": rpc.MainNetBeta,
	"devnet":       rpc.DevNet,
	"testnet":      rpc.TestNet,
	"localnet":     rpc.LocalNet,
}

// LoadShopConfig resolves the shop configuration. cluster overrides
// CANDYSHOP_ENV when non-empty; the cluster only picks the default RPC and
// websocket endpoints.
func LoadShopConfig(cluster string) (ShopConfig, error) {
	if err := ensureRuntimeConfigLoaded(); err != nil {
		return ShopConfig{}, err
	}

	cluster = strings.ToLower(strings.TrimSpace(cluster))
	if cluster == "" {
		cluster = strings.ToLower(envOrDefault("CANDYSHOP_ENV", defaultCluster))
	}
	endpoints, ok := clusters[cluster]
	if !ok {
		return ShopConfig{}, fmt.Errorf("invalid cluster %q (expected mainnet-beta|devnet|testnet|localnet)", cluster)
	}

	keypairPath := envOrDefault("CANDYSHOP_KEYPAIR_PATH", envOrDefault("SOLANA_KEYPAIR_PATH", "~/.config/solana/id.json"))
	keypairPath = maybeUseLocalSecretKeypair(keypairPath)
	expandedKeypair, err := expandHomePath(keypairPath)
	if err != nil {
		return ShopConfig{}, fmt.Errorf("expand keypair path: %w", err)
	}

	commitment, err := envCommitment("SOLANA_COMMITMENT", rpc.CommitmentConfirmed)
	if err != nil {
		return ShopConfig{}, err
	}

	programID, err := envPubkey("CANDYSHOP_PROGRAM_ID", solana.PublicKey{})
	if err != nil {
		return ShopConfig{}, err
	}
	creator, err := envPubkey("CANDYSHOP_CREATOR", solana.PublicKey{})
	if err != nil {
		return ShopConfig{}, err
	}
	treasuryMint, err := envPubkey("CANDYSHOP_TREASURY_MINT", solana.PublicKey{})
	if err != nil {
		return ShopConfig{}, err
	}
	treasuryDecimals, err := envUint8("CANDYSHOP_TREASURY_DECIMALS", 9)
	if err != nil {
		return ShopConfig{}, err
	}

	allowBidlessCancel, err := envBool("CANDYSHOP_ALLOW_BIDLESS_CANCEL", false)
	if err != nil {
		return ShopConfig{}, err
	}

	batchSize, err := envInt("CANDYSHOP_BATCH_SIZE", 100)
	if err != nil {
		return ShopConfig{}, err
	}
	batchDelay, err := envDuration("CANDYSHOP_BATCH_DELAY", time.Second)
	if err != nil {
		return ShopConfig{}, err
	}

	cuLimit, err := envUint32("CANDYSHOP_COMPUTE_UNIT_LIMIT", 0)
	if err != nil {
		return ShopConfig{}, err
	}
	cuPrice, err := envUint64("CANDYSHOP_COMPUTE_UNIT_PRICE_MICRO_LAMPORTS", 0)
	if err != nil {
		return ShopConfig{}, err
	}

	skipPreflight, err := envBool("CANDYSHOP_SKIP_PREFLIGHT", false)
	if err != nil {
		return ShopConfig{}, err
	}
	maxRetries, err := envOptionalUint("CANDYSHOP_MAX_RETRIES")
	if err != nil {
		return ShopConfig{}, err
	}
	txTimeout, err := envDuration("CANDYSHOP_TX_TIMEOUT", 32*time.Second)
	if err != nil {
		return ShopConfig{}, err
	}
	watchFloor, err := envDuration("CANDYSHOP_WATCH_RECONNECT_FLOOR", time.Second)
	if err != nil {
		return ShopConfig{}, err
	}

	journalDriver := strings.ToLower(envOrDefault("CANDYSHOP_JOURNAL_DRIVER", "sqlite"))
	journalDSN := envOrDefault("CANDYSHOP_JOURNAL_DSN", "")
	if journalDSN == "" {
		if journalDriver != "sqlite" {
			return ShopConfig{}, fmt.Errorf("CANDYSHOP_JOURNAL_DSN is required for journal driver %q", journalDriver)
		}
		journalDSN, err = expandHomePath("~/.candyshop/journal.db")
		if err != nil {
			return ShopConfig{}, fmt.Errorf("expand journal path: %w", err)
		}
	}

	return ShopConfig{
		Cluster:                       cluster,
		RPCURL:                        envOrDefault("SOLANA_RPC_URL", endpoints.RPC),
		WSURL:                         envOrDefault("SOLANA_WS_URL", endpoints.WS),
		Commitment:                    commitment,
		KeypairPath:                   expandedKeypair,
		ProgramID:                     programID,
		Creator:                       creator,
		TreasuryMint:                  treasuryMint,
		TreasuryDecimals:              treasuryDecimals,
		AllowBidlessCancel:            allowBidlessCancel,
		BatchSize:                     batchSize,
		BatchDelay:                    batchDelay,
		ComputeUnitLimit:              cuLimit,
		ComputeUnitPriceMicroLamports: cuPrice,
		SkipPreflight:                 skipPreflight,
		MaxRetries:                    maxRetries,
		TxTimeout:                     txTimeout,
		WatchReconnectFloor:           watchFloor,
		JournalDriver:                 journalDriver,
		JournalDSN:                    journalDSN,
		Log:                           buildLogConfig("CANDYSHOP", "candyshop"),
	}, nil
}

type ConfigSource struct {
	Phase  string
	Path   string
	Loaded bool
}

func CurrentConfigSource() (ConfigSource, error) {
	if err := ensureRuntimeConfigLoaded(); err != nil {
		return ConfigSource{}, err
	}
	return ConfigSource{
		Phase:  runtimeConfigPhase,
		Path:   runtimeConfigPath,
		Loaded: runtimeConfigLoaded,
	}, nil
}

func buildLogConfig(prefix string, serviceName string) LogConfig {
	level := envOrDefault(prefix+"_LOG_LEVEL", envOrDefault("LOG_LEVEL", "info"))
	format := envOrDefault(prefix+"_LOG_FORMAT", envOrDefault("LOG_FORMAT", "text"))
	output := envOrDefault(prefix+"_LOG_OUTPUT", envOrDefault("LOG_OUTPUT", "console"))
	filePath := envOrDefault(prefix+"_LOG_FILE", envOrDefault("LOG_FILE", filepath.Join("logs", serviceName+".log")))

	return LogConfig{
		Level:    level,
		Format:   format,
		Output:   output,
		FilePath: filePath,
	}
}

func envPubkey(key string, fallback solana.PublicKey) (solana.PublicKey, error) {
	raw := strings.TrimSpace(valueForKey(key))
	if raw == "" {
		return fallback, nil
	}
	pk, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	return pk, nil
}

func envCommitment(key string, fallback rpc.CommitmentType) (rpc.CommitmentType, error) {
	raw := strings.TrimSpace(valueForKey(key))
	if raw == "" {
		return fallback, nil
	}
	switch strings.ToLower(raw) {
	case string(rpc.CommitmentProcessed):
		return rpc.CommitmentProcessed, nil
	case string(rpc.CommitmentConfirmed):
		return rpc.CommitmentConfirmed, nil
	case string(rpc.CommitmentFinalized):
		return rpc.CommitmentFinalized, nil
	default:
		return "", fmt.Errorf("invalid %s: %q (expected processed|confirmed|finalized)", key, raw)
	}
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(valueForKey(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be > 0", key)
	}
	return d, nil
}

func envInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(valueForKey(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("invalid %s: must be > 0", key)
	}
	return v, nil
}

func envUint64(key string, fallback uint64) (uint64, error) {
	raw := strings.TrimSpace(valueForKey(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func envUint32(key string, fallback uint32) (uint32, error) {
	raw := strings.TrimSpace(valueForKey(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return uint32(v), nil
}

func envUint8(key string, fallback uint8) (uint8, error) {
	raw := strings.TrimSpace(valueForKey(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseUint(raw, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return uint8(v), nil
}

func envOptionalUint(key string) (*uint, error) {
	raw := strings.TrimSpace(valueForKey(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	out := uint(v)
	return &out, nil
}

func envBool(key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(valueForKey(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func envOrDefault(key, fallback string) string {
	if value := strings.TrimSpace(valueForKey(key)); value != "" {
		return value
	}
	return fallback
}

func expandHomePath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if path == "~" {
			return homeDir, nil
		}
		return filepath.Join(homeDir, strings.TrimPrefix(path, "~/")), nil
	}
	return path, nil
}

var (
	runtimeConfigOnce   sync.Once
	runtimeConfigErr    error
	runtimeConfigValues map[string]string
	runtimeConfigLoaded bool
	runtimeConfigPath   string
	runtimeConfigPhase  string
)

func ensureRuntimeConfigLoaded() error {
	runtimeConfigOnce.Do(func() {
		runtimeConfigValues = make(map[string]string)

		dotenvPath := strings.TrimSpace(os.Getenv("DOTENV_FILE"))
		if dotenvPath == "" {
			dotenvPath = ".env"
		}
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			runtimeConfigErr = fmt.Errorf("load env file %q: %w", dotenvPath, err)
			return
		}

		phase := strings.TrimSpace(os.Getenv("CONFIG_PHASE"))
		if phase == "" {
			phase = "local"
		}
		runtimeConfigPhase = phase

		configPath := strings.TrimSpace(os.Getenv("CONFIG_FILE"))
		explicitPath := configPath != ""
		if configPath == "" {
			configPath = filepath.Join("config", "config-"+phase+".yaml")
		}

		body, err := os.ReadFile(configPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) && !explicitPath {
				return
			}
			runtimeConfigErr = fmt.Errorf("read config file %q: %w", configPath, err)
			return
		}

		raw := make(map[string]any)
		if err := yaml.Unmarshal(body, &raw); err != nil {
			runtimeConfigErr = fmt.Errorf("parse config file %q: %w", configPath, err)
			return
		}

		flattened, err := flattenConfig(raw)
		if err != nil {
			runtimeConfigErr = fmt.Errorf("flatten config file %q: %w", configPath, err)
			return
		}

		runtimeConfigValues = flattened
		runtimeConfigLoaded = true
		if absPath, err := filepath.Abs(configPath); err == nil {
			runtimeConfigPath = absPath
		} else {
			runtimeConfigPath = configPath
		}
	})
	return runtimeConfigErr
}

func flattenConfig(raw map[string]any) (map[string]string, error) {
	out := make(map[string]string)
	for key, value := range raw {
		segment := normalizeKeySegment(key)
		if segment == "" {
			continue
		}
		if err := flattenConfigValue(segment, value, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func flattenConfigValue(prefix string, value any, out map[string]string) error {
	switch typed := value.(type) {
	case map[string]any:
		for key, child := range typed {
			segment := normalizeKeySegment(key)
			if segment == "" {
				continue
			}
			if err := flattenConfigValue(prefix+"_"+segment, child, out); err != nil {
				return err
			}
		}
		return nil
	case map[any]any:
		for keyAny, child := range typed {
			keyText, ok := keyAny.(string)
			if !ok {
				return fmt.Errorf("unsupported map key type %T under %q", keyAny, prefix)
			}
			segment := normalizeKeySegment(keyText)
			if segment == "" {
				continue
			}
			if err := flattenConfigValue(prefix+"_"+segment, child, out); err != nil {
				return err
			}
		}
		return nil
	case []any:
		parts := make([]string, 0, len(typed))
		for _, item := range typed {
			switch scalar := item.(type) {
			case string:
				if strings.TrimSpace(scalar) == "" {
					continue
				}
				parts = append(parts, strings.TrimSpace(scalar))
			case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
				parts = append(parts, fmt.Sprint(scalar))
			default:
				return fmt.Errorf("unsupported list item type %T under %q", item, prefix)
			}
		}
		out[prefix] = strings.Join(parts, ",")
		return nil
	case nil:
		return nil
	default:
		out[prefix] = fmt.Sprint(typed)
		return nil
	}
}

func normalizeKeySegment(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(raw))
	lastUnderscore := false

	for _, r := range raw {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
			lastUnderscore = false
			continue
		}
		if !lastUnderscore && b.Len() > 0 {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}

	return strings.Trim(b.String(), "_")
}

func valueForKey(key string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}

	if err := ensureRuntimeConfigLoaded(); err != nil {
		return ""
	}

	if value := strings.TrimSpace(runtimeConfigValues[key]); value != "" {
		return value
	}
	return ""
}

func maybeUseLocalSecretKeypair(current string) string {
	expandedCurrent, err := expandHomePath(current)
	if err != nil {
		return current
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return current
	}
	defaultHomePath := filepath.Join(homeDir, ".config", "solana", "id.json")
	if filepath.Clean(expandedCurrent) != filepath.Clean(defaultHomePath) {
		return current
	}

	for _, candidate := range []string{
		"../.local/secret/candyshop-wallet.json",
		".local/secret/candyshop-wallet.json",
	} {
		absoluteCandidate, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		info, err := os.Stat(absoluteCandidate)
		if err != nil {
			continue
		}
		if info.IsDir() {
			continue
		}
		return absoluteCandidate
	}

	return current
}
