package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// DeploymentConfig represents deployments.json.
type DeploymentConfig struct {
	ChainID    int64  `json:"chainId"`
	RPCURL     string `json:"rpcUrl"`
	StartBlock uint64 `json:"startBlock"`
	Contracts  struct {
		InnChain string `json:"InnChain"`
		USDC     string `json:"USDC"`
	} `json:"contracts"`
}

// AppConfig ties together deployment info, environment overrides and derived values.
type AppConfig struct {
	Env        string
	LogLevel   string
	Deployment DeploymentConfig
	Chain      ChainConfig
	Contracts  ContractsConfig
	Service    ServiceConfig
}

type ChainConfig struct {
	RPCURL     string
	ChainID    int64
	PrivateKey string
	// Account is used for read-only sessions when no private key is configured.
	Account common.Address
}

type ContractsConfig struct {
	InnChain   common.Address
	USDC       common.Address
	StartBlock uint64
}

type ServiceConfig struct {
	MetricsAddr string
	ReceiptPoll time.Duration
	RPCTimeout  time.Duration
}

const (
	// Lisk Sepolia, where the escrow contract is deployed.
	DefaultChainID = 4202
	DefaultRPCURL  = "https://rpc.sepolia-api.lisk.com"
)

// Load aggregates configuration from an optional deployments file and the environment.
// Environment values win over the file, which wins over compiled-in defaults.
func Load() (*AppConfig, error) {
	var deployCfg DeploymentConfig
	if path := envOr("DEPLOYMENTS_PATH", ""); path != "" {
		loaded, err := loadDeployments(path)
		if err != nil {
			return nil, fmt.Errorf("load deployments: %w", err)
		}
		deployCfg = *loaded
	}

	chainID := deployCfg.ChainID
	if chainID == 0 {
		chainID = DefaultChainID
	}
	rpcURL := deployCfg.RPCURL
	if rpcURL == "" {
		rpcURL = DefaultRPCURL
	}

	innchain, err := address("INNCHAIN_ADDRESS", deployCfg.Contracts.InnChain, true)
	if err != nil {
		return nil, err
	}
	usdc, err := address("USDC_ADDRESS", deployCfg.Contracts.USDC, true)
	if err != nil {
		return nil, err
	}
	account, err := address("WALLET_ADDRESS", "", false)
	if err != nil {
		return nil, err
	}

	chainCfg := ChainConfig{
		RPCURL:     envOr("CHAIN_RPC_URL", rpcURL),
		ChainID:    int64(envOrInt("CHAIN_ID", int(chainID))),
		PrivateKey: envOr("CHAIN_PRIVATE_KEY", ""),
		Account:    account,
	}

	startBlock := envOrInt("START_BLOCK", int(deployCfg.StartBlock))
	if startBlock < 0 {
		return nil, fmt.Errorf("START_BLOCK must not be negative, got %d", startBlock)
	}

	contractsCfg := ContractsConfig{
		InnChain:   innchain,
		USDC:       usdc,
		StartBlock: uint64(startBlock),
	}

	serviceCfg := ServiceConfig{
		MetricsAddr: envOr("METRICS_ADDR", ""),
		ReceiptPoll: time.Duration(envOrInt("RECEIPT_POLL_MS", 2000)) * time.Millisecond,
		RPCTimeout:  time.Duration(envOrInt("RPC_TIMEOUT_MS", 30000)) * time.Millisecond,
	}

	return &AppConfig{
		Env:        envOr("APP_ENV", "development"),
		LogLevel:   envOr("LOG_LEVEL", "info"),
		Deployment: deployCfg,
		Chain:      chainCfg,
		Contracts:  contractsCfg,
		Service:    serviceCfg,
	}, nil
}

func loadDeployments(path string) (*DeploymentConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg DeploymentConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func address(key, fallback string, required bool) (common.Address, error) {
	val := envOr(key, fallback)
	if val == "" {
		if required {
			return common.Address{}, fmt.Errorf("%s is required", key)
		}
		return common.Address{}, nil
	}
	if !common.IsHexAddress(val) {
		return common.Address{}, fmt.Errorf("%s: %w: %q", key, errInvalidAddress, val)
	}
	return common.HexToAddress(val), nil
}

var errInvalidAddress = errors.New("invalid address")

func envOr(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
	}
	return fallback
}
