package main

import (
	"fmt"
	"math/big"

	"github.com/spf13/cobra"

	"emissionScope/internal/backstop"
)

func runConvert(cmd *cobra.Command, _ []string) error {
	poolShares, err := parseAmountFlag(cmd, "pool-shares")
	if err != nil {
		return err
	}
	poolTokens, err := parseAmountFlag(cmd, "pool-tokens")
	if err != nil {
		return err
	}

	pool := backstop.NewPoolBalance()
	pool.Shares = poolShares
	pool.Tokens = poolTokens

	sharesFlag, _ := cmd.Flags().GetString("shares")
	tokensFlag, _ := cmd.Flags().GetString("tokens")
	if (sharesFlag == "") == (tokensFlag == "") {
		return fmt.Errorf("exactly one of --shares or --tokens is required")
	}

	if sharesFlag != "" {
		shares, err := parseAmount(sharesFlag)
		if err != nil {
			return err
		}
		tokens, err := pool.ConvertToTokens(shares)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s shares = %s tokens\n", shares, tokens)
		return nil
	}

	tokens, err := parseAmount(tokensFlag)
	if err != nil {
		return err
	}
	shares, err := pool.ConvertToShares(tokens)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s tokens = %s shares\n", tokens, shares)
	return nil
}

func parseAmountFlag(cmd *cobra.Command, name string) (*big.Int, error) {
	value, _ := cmd.Flags().GetString(name)
	return parseAmount(value)
}

func parseAmount(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %s", value)
	}
	if parsed.Sign() < 0 {
		return nil, fmt.Errorf("amount must be non-negative: %s", value)
	}
	return parsed, nil
}
