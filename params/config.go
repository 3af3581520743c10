package params

import (
	"math/big"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// Market holds the economic parameters of the exchange engine.
type Market struct {
	// FeeBps is the operator fee in basis points (300 = 3%).
	// Fee rounds down on settlement; the remainder accrues to the seller.
	FeeBps int64

	// MinOrderPrice is the listing floor in the smallest payment unit.
	// Prevents dust listings whose fee would round to zero.
	MinOrderPrice *big.Int

	// MaxBatchSize caps batch removal and batch fulfillment sizes.
	MaxBatchSize int

	// WhitelistEnabled gates listings to allow-listed asset contracts.
	WhitelistEnabled bool

	// Operator receives the fee side of every settlement.
	Operator common.Address

	// Admin may pause the engine and toggle the whitelist.
	Admin common.Address
}

// Domain holds the EIP-712 signing domain parameters. Changing any of
// these invalidates every previously issued, unredeemed signature.
type Domain struct {
	Name    string
	Version string
	ChainID *big.Int
}

type Node struct {
	APIAddr string
	DBPath  string
	// EthRPC, when set, switches the asset registry from the in-process
	// devnet registry to a live ERC-721 adapter over this endpoint.
	EthRPC string
}

type Config struct {
	Market Market
	Domain Domain
	Node   Node
}

func Default() Config {
	return Config{
		Market: Market{
			FeeBps:           300,
			MinOrderPrice:    big.NewInt(10_000),
			MaxBatchSize:     50,
			WhitelistEnabled: false,
		},
		Domain: Domain{
			Name:    "Curio",
			Version: "1",
			ChainID: big.NewInt(1337), // Local dev chain
		},
		Node: Node{
			APIAddr: ":8080",
			DBPath:  "data/curio",
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	// Try to load .env file (optional - won't fail if not exists)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	if bps := os.Getenv("FEE_BPS"); bps != "" {
		if v, err := strconv.ParseInt(bps, 10, 64); err == nil {
			cfg.Market.FeeBps = v
		}
	}
	if floor := os.Getenv("MIN_ORDER_PRICE"); floor != "" {
		if v, ok := new(big.Int).SetString(floor, 10); ok {
			cfg.Market.MinOrderPrice = v
		}
	}
	if batch := os.Getenv("MAX_BATCH_SIZE"); batch != "" {
		if v, err := strconv.Atoi(batch); err == nil && v > 0 {
			cfg.Market.MaxBatchSize = v
		}
	}
	if wl := os.Getenv("WHITELIST_ENABLED"); wl != "" {
		cfg.Market.WhitelistEnabled = wl == "true"
	}
	if op := os.Getenv("OPERATOR_ADDRESS"); op != "" {
		cfg.Market.Operator = common.HexToAddress(op)
	}
	if adm := os.Getenv("ADMIN_ADDRESS"); adm != "" {
		cfg.Market.Admin = common.HexToAddress(adm)
	}

	if name := os.Getenv("DOMAIN_NAME"); name != "" {
		cfg.Domain.Name = name
	}
	if ver := os.Getenv("DOMAIN_VERSION"); ver != "" {
		cfg.Domain.Version = ver
	}
	if chain := os.Getenv("CHAIN_ID"); chain != "" {
		if v, ok := new(big.Int).SetString(chain, 10); ok {
			cfg.Domain.ChainID = v
		}
	}

	if addr := os.Getenv("API_ADDR"); addr != "" {
		cfg.Node.APIAddr = addr
	}
	if path := os.Getenv("DB_PATH"); path != "" {
		cfg.Node.DBPath = path
	}
	if rpc := os.Getenv("ETH_RPC_URL"); rpc != "" {
		cfg.Node.EthRPC = rpc
	}

	return cfg
}
