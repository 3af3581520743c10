package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"

	"github.com/joonhyuk-dev/curio/pkg/api"
	xcrypto "github.com/joonhyuk-dev/curio/pkg/crypto"
	"github.com/joonhyuk-dev/curio/pkg/market"
)

func main() {
	// Step 1: Generate or load key
	var signer *xcrypto.Signer
	var err error
	if key := os.Getenv("PRIVATE_KEY"); key != "" {
		signer, err = xcrypto.FromPrivateKeyHex(key)
	} else {
		fmt.Println("Generating new keypair...")
		signer, err = xcrypto.GenerateKey()
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	pub, _ := hex.DecodeString(signer.PublicKeyHex())
	fmt.Printf("Address: %s\n", xcrypto.AddressFromUncompressedPub(pub))
	fmt.Printf("Private Key: %s (KEEP SECRET!)\n\n", signer.PrivateKeyHex())

	// Step 2: Build the order
	order := &market.Order{
		Seller:        signer.Address(),
		Price:         big.NewInt(1_000_000),
		AssetContract: common.HexToAddress("0x00000000000000000000000000000000000c0110"),
		TokenID:       big.NewInt(1),
		Expiration:    0, // no expiry
		Nonce:         0,
	}

	fmt.Println("Order Details:")
	fmt.Printf("  Seller: %s\n", order.Seller.Hex())
	fmt.Printf("  Price: %s\n", order.Price.String())
	fmt.Printf("  Contract: %s\n", order.AssetContract.Hex())
	fmt.Printf("  TokenId: %s\n\n", order.TokenID.String())

	// Step 3: EIP-712 sign
	typed := xcrypto.NewTypedSigner(xcrypto.DefaultDomain())
	signature, err := typed.SignOrder(signer, order.Typed())
	if err != nil {
		fmt.Printf("Error signing: %v\n", err)
		os.Exit(1)
	}
	hash, _ := typed.HashOrder(order.Typed())
	fmt.Printf("Order hash: %s\n", hash.Hex())
	fmt.Printf("Signature: 0x%x\n\n", signature)

	// Step 4: Verify before shipping it anywhere
	valid, err := typed.VerifyOrderSignature(order.Typed(), signature)
	if err != nil || !valid {
		fmt.Printf("Signature INVALID (err=%v)\n", err)
		os.Exit(1)
	}
	fmt.Println("Signature VALID")

	// Step 5: Build the listing request
	req := api.SubmitOrderRequest{
		Seller:        order.Seller.Hex(),
		Price:         order.Price.String(),
		AssetContract: order.AssetContract.Hex(),
		TokenID:       order.TokenID.String(),
		Expiration:    order.Expiration,
		Nonce:         order.Nonce,
		Signature:     fmt.Sprintf("0x%x", signature),
	}
	body, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		fmt.Printf("Error marshaling JSON: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nTo list this order:")
	fmt.Println("  POST http://localhost:8080/api/v1/orders")
	fmt.Println("  Content-Type: application/json")
	fmt.Println("  Body:")
	fmt.Println(string(body))

	// Wallets can sign the same payload via eth_signTypedData_v4:
	typedJSON, _ := typed.OrderToJSON(order.Typed())
	fmt.Println("\neth_signTypedData_v4 payload:")
	fmt.Println(typedJSON)
}
