package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/peerlane/relay/internal/crypto"
	"github.com/peerlane/relay/internal/domain"
)

// escrowABI is the subset of the escrow contract interface the relay needs:
// config reads, commitment hash lookups, and expired-trade cancellation.
const escrowABI = `[
	{"type":"function","name":"getConfig","stateMutability":"view","inputs":[],"outputs":[
		{"name":"feeRateBps","type":"uint256"},
		{"name":"minTradeValue","type":"uint256"},
		{"name":"maxTradeValue","type":"uint256"},
		{"name":"paymentWindow","type":"uint256"}]},
	{"type":"function","name":"getOrderHash","stateMutability":"view","inputs":[
		{"name":"orderId","type":"bytes32"}],"outputs":[
		{"name":"accountLinesHash","type":"bytes32"}]},
	{"type":"function","name":"cancelExpiredTrade","stateMutability":"nonpayable","inputs":[
		{"name":"tradeId","type":"bytes32"}],"outputs":[]},
	{"type":"event","name":"OrderCreated","inputs":[
		{"name":"orderId","type":"bytes32","indexed":true},
		{"name":"seller","type":"address","indexed":true},
		{"name":"token","type":"address","indexed":false},
		{"name":"amount","type":"uint256","indexed":false}],"anonymous":false}
]`

// EthereumClient implements domain.ChainClient against one EVM chain's escrow
// contract. All methods are safe for concurrent use; nonce assignment is
// delegated to the node's pending-nonce view, which is sufficient because the
// reconciler submits cancellations sequentially.
type EthereumClient struct {
	chainID    uint64
	client     *ethclient.Client
	escrowAddr common.Address
	parsedABI  abi.ABI
	relayerKey *ecdsa.PrivateKey
	relayer    common.Address
	signer     types.Signer
}

// NewEthereumClient dials the RPC endpoint, verifies the remote chain id, and
// returns a client bound to the escrow contract. relayerKey may be nil for
// read-only use; write operations then fail.
func NewEthereumClient(ctx context.Context, rpcURL string, chainID uint64, escrowAddress string, relayerKey *ecdsa.PrivateKey) (*EthereumClient, error) {
	parsed, err := abi.JSON(strings.NewReader(escrowABI))
	if err != nil {
		return nil, fmt.Errorf("chain: parse escrow abi: %w", err)
	}

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain %d: dial %s: %w", chainID, rpcURL, err)
	}

	remoteID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("chain %d: query chain id: %w", chainID, err)
	}
	if remoteID.Uint64() != chainID {
		client.Close()
		return nil, fmt.Errorf("chain %d: rpc endpoint reports chain id %s", chainID, remoteID)
	}

	ec := &EthereumClient{
		chainID:    chainID,
		client:     client,
		escrowAddr: common.HexToAddress(escrowAddress),
		parsedABI:  parsed,
		relayerKey: relayerKey,
		signer:     types.LatestSignerForChainID(new(big.Int).SetUint64(chainID)),
	}
	if relayerKey != nil {
		ec.relayer = ethcrypto.PubkeyToAddress(relayerKey.PublicKey)
	}
	return ec, nil
}

// ChainID returns the chain this client is bound to.
func (c *EthereumClient) ChainID() uint64 {
	return c.chainID
}

// RelayerAddress returns the relay wallet address, or the zero address when
// the client is read-only.
func (c *EthereumClient) RelayerAddress() common.Address {
	return c.relayer
}

// Close releases the underlying RPC connection.
func (c *EthereumClient) Close() {
	c.client.Close()
}

// call performs a read-only contract call and unpacks the outputs.
func (c *EthereumClient) call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := c.parsedABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("chain %d: pack %s: %w", c.chainID, method, err)
	}

	out, err := c.client.CallContract(ctx, ethereum.CallMsg{
		To:   &c.escrowAddr,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("chain %d: call %s: %w", c.chainID, method, err)
	}

	res, err := c.parsedABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("chain %d: unpack %s: %w", c.chainID, method, err)
	}
	return res, nil
}

// GetContractConfig reads the escrow contract's runtime configuration.
func (c *EthereumClient) GetContractConfig(ctx context.Context) (domain.ContractConfig, error) {
	res, err := c.call(ctx, "getConfig")
	if err != nil {
		return domain.ContractConfig{}, err
	}
	if len(res) != 4 {
		return domain.ContractConfig{}, fmt.Errorf("chain %d: getConfig returned %d values", c.chainID, len(res))
	}

	feeRate, ok1 := res[0].(*big.Int)
	minVal, ok2 := res[1].(*big.Int)
	maxVal, ok3 := res[2].(*big.Int)
	window, ok4 := res[3].(*big.Int)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return domain.ContractConfig{}, fmt.Errorf("chain %d: getConfig returned unexpected types", c.chainID)
	}

	return domain.ContractConfig{
		FeeRateBps:        feeRate.String(),
		MinTradeValue:     minVal.String(),
		MaxTradeValue:     maxVal.String(),
		PaymentWindowSecs: window.Uint64(),
		RelayerAddress:    c.relayer.Hex(),
		EscrowAddress:     c.escrowAddr.Hex(),
	}, nil
}

// GetOrderHash returns the payment commitment hash stored on-chain for the
// order. The contract returns all zeroes for unknown order ids.
func (c *EthereumClient) GetOrderHash(ctx context.Context, orderID string) ([32]byte, error) {
	id, err := crypto.ParseHash32(orderID)
	if err != nil {
		return [32]byte{}, fmt.Errorf("chain %d: order id: %w", c.chainID, err)
	}

	res, err := c.call(ctx, "getOrderHash", id)
	if err != nil {
		return [32]byte{}, err
	}
	hash, ok := res[0].([32]byte)
	if !ok {
		return [32]byte{}, fmt.Errorf("chain %d: getOrderHash returned unexpected type", c.chainID)
	}
	return hash, nil
}

// GetOrderIDFromTx resolves the order id created by a transaction by scanning
// its receipt for the escrow's OrderCreated event.
func (c *EthereumClient) GetOrderIDFromTx(ctx context.Context, txHash string) (string, error) {
	receipt, err := c.client.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		return "", fmt.Errorf("chain %d: receipt for %s: %w", c.chainID, txHash, err)
	}

	topic := c.parsedABI.Events["OrderCreated"].ID
	for _, lg := range receipt.Logs {
		if lg.Address == c.escrowAddr && len(lg.Topics) >= 2 && lg.Topics[0] == topic {
			return lg.Topics[1].Hex(), nil
		}
	}
	return "", fmt.Errorf("chain %d: no OrderCreated event in tx %s", c.chainID, txHash)
}

// CancelExpiredTrade submits a relay-paid cancellation, waits for inclusion,
// and reports the gas accounting from the mined receipt.
func (c *EthereumClient) CancelExpiredTrade(ctx context.Context, tradeID [32]byte) (string, domain.GasReceipt, error) {
	if c.relayerKey == nil {
		return "", domain.GasReceipt{}, fmt.Errorf("chain %d: no relayer key configured", c.chainID)
	}

	data, err := c.parsedABI.Pack("cancelExpiredTrade", tradeID)
	if err != nil {
		return "", domain.GasReceipt{}, fmt.Errorf("chain %d: pack cancelExpiredTrade: %w", c.chainID, err)
	}

	nonce, err := c.client.PendingNonceAt(ctx, c.relayer)
	if err != nil {
		return "", domain.GasReceipt{}, fmt.Errorf("chain %d: pending nonce: %w", c.chainID, err)
	}
	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", domain.GasReceipt{}, fmt.Errorf("chain %d: suggest gas price: %w", c.chainID, err)
	}
	gasLimit, err := c.client.EstimateGas(ctx, ethereum.CallMsg{
		From: c.relayer,
		To:   &c.escrowAddr,
		Data: data,
	})
	if err != nil {
		return "", domain.GasReceipt{}, fmt.Errorf("chain %d: estimate gas: %w", c.chainID, err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &c.escrowAddr,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, c.signer, c.relayerKey)
	if err != nil {
		return "", domain.GasReceipt{}, fmt.Errorf("chain %d: sign tx: %w", c.chainID, err)
	}
	if err := c.client.SendTransaction(ctx, signed); err != nil {
		return "", domain.GasReceipt{}, fmt.Errorf("chain %d: send cancellation: %w", c.chainID, err)
	}

	receipt, err := bind.WaitMined(ctx, c.client, signed)
	if err != nil {
		return "", domain.GasReceipt{}, fmt.Errorf("chain %d: wait mined %s: %w", c.chainID, signed.Hash(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return "", domain.GasReceipt{}, fmt.Errorf("chain %d: cancellation tx %s reverted", c.chainID, signed.Hash())
	}

	effPrice := receipt.EffectiveGasPrice
	if effPrice == nil {
		effPrice = gasPrice
	}
	gasUsed := new(big.Int).SetUint64(receipt.GasUsed)

	return signed.Hash().Hex(), domain.GasReceipt{
		GasUsed:     receipt.GasUsed,
		GasPriceWei: effPrice,
		CostWei:     new(big.Int).Mul(gasUsed, effPrice),
	}, nil
}

// Compile-time interface check.
var _ domain.ChainClient = (*EthereumClient)(nil)
