package chain

import "math/big"

// EstimateTVL values a pool as the plain sum of both reserves scaled by
// their token decimals, formatted to two decimal places. This assumes both
// reserves are already comparably priced; it is a naive estimate, not a
// price-oracle valuation.
func EstimateTVL(reserve0, reserve1 *big.Int, decimals0, decimals1 uint8) string {
	total := new(big.Float).Add(
		scaleByDecimals(reserve0, decimals0),
		scaleByDecimals(reserve1, decimals1),
	)
	return total.Text('f', 2)
}

func scaleByDecimals(raw *big.Int, decimals uint8) *big.Float {
	if raw == nil {
		return new(big.Float)
	}
	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return new(big.Float).Quo(new(big.Float).SetInt(raw), new(big.Float).SetInt(divisor))
}
