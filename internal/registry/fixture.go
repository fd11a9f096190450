package registry

import "time"

const microUSD = 1_000_000

// Fixture builds a registry seeded with the launch catalog: three lending
// venues, their pools, three RWA yield pools and three packaged strategies.
// Amounts are micro-USD, rates and LTV bounds scale-1e6 fractions.
func Fixture() *Registry {
	r := New()

	r.AddProtocol(LendingProtocol{
		Name:                 "Aave V3",
		Protocol:             ProtocolAave,
		Address:              "0x87870bca3f3fd6335c3f4ce8392d69350b4fa4e2",
		MaxLTV:               750_000,
		LiquidationThreshold: 800_000,
		IsActive:             true,
		SupportedAssets:      []string{"USDC", "USDT", "DAI", "WETH"},
		TotalTVL:             75_000_000 * microUSD,
	})
	r.AddProtocol(LendingProtocol{
		Name:                 "Compound V3",
		Protocol:             ProtocolCompound,
		Address:              "0xc3d688b66703497daa19211eedff47f25384cdc3",
		MaxLTV:               700_000,
		LiquidationThreshold: 750_000,
		IsActive:             true,
		SupportedAssets:      []string{"USDC", "DAI", "WETH"},
		TotalTVL:             45_000_000 * microUSD,
	})
	r.AddProtocol(LendingProtocol{
		Name:                 "OneChain Lending",
		Protocol:             ProtocolOneChain,
		Address:              "0x1c7e83f8c581a967940dbbe991d8cbec86f4f3aa",
		MaxLTV:               800_000,
		LiquidationThreshold: 850_000,
		IsActive:             true,
		SupportedAssets:      []string{"OCT", "USDC", "WETH"},
		TotalTVL:             15_000_000 * microUSD,
	})

	r.AddLendingPool(LendingPool{
		ID:          "aave-usdc",
		Name:        "Aave USDC Pool",
		Asset:       "USDC",
		Protocol:    ProtocolAave,
		TotalSupply: 50_000_000 * microUSD,
		TotalBorrow: 35_000_000 * microUSD,
		SupplyRate:  32_000, // 3.2%
		BorrowRate:  48_000, // 4.8%
		TVL:         50_000_000 * microUSD,
		IsActive:    true,
	})
	r.AddLendingPool(LendingPool{
		ID:          "compound-dai",
		Name:        "Compound DAI Pool",
		Asset:       "DAI",
		Protocol:    ProtocolCompound,
		TotalSupply: 25_000_000 * microUSD,
		TotalBorrow: 18_000_000 * microUSD,
		SupplyRate:  28_000, // 2.8%
		BorrowRate:  42_000, // 4.2%
		TVL:         25_000_000 * microUSD,
		IsActive:    true,
	})
	r.AddLendingPool(LendingPool{
		ID:          "onechain-oct",
		Name:        "OneChain OCT Pool",
		Asset:       "OCT",
		Protocol:    ProtocolOneChain,
		TotalSupply: 10_000_000 * microUSD,
		TotalBorrow: 6_000_000 * microUSD,
		SupplyRate:  55_000, // 5.5%
		BorrowRate:  82_000, // 8.2%
		TVL:         10_000_000 * microUSD,
		IsActive:    true,
	})

	r.AddYieldPool(YieldPool{
		ID:                "rwa-real-estate",
		Name:              "RWA Real Estate Staking",
		RewardToken:       "OCT",
		TotalStaked:       5_000_000 * microUSD,
		TotalRewards:      250_000 * microUSD,
		APY:               125_000, // 12.5%
		MinStakingPeriod:  30 * 24 * time.Hour,
		LockupPeriod:      7 * 24 * time.Hour,
		IsActive:          true,
		AllowedCollateral: []string{"0x5091fa5e3cc8cf6f2b1e56e50c2d459ff51aeec3"},
	})
	r.AddYieldPool(YieldPool{
		ID:                "rwa-carbon-credits",
		Name:              "Carbon Credits Yield Pool",
		RewardToken:       "USDC",
		TotalStaked:       2_000_000 * microUSD,
		TotalRewards:      180_000 * microUSD,
		APY:               152_000, // 15.2%
		MinStakingPeriod:  60 * 24 * time.Hour,
		LockupPeriod:      14 * 24 * time.Hour,
		IsActive:          true,
		AllowedCollateral: []string{"0x9be5c6a544c8b6a9a9c0e7dd9e312f041a8e4c10"},
	})
	r.AddYieldPool(YieldPool{
		ID:                "rwa-precious-metals",
		Name:              "Precious Metals Vault",
		RewardToken:       "DAI",
		TotalStaked:       8_000_000 * microUSD,
		TotalRewards:      640_000 * microUSD,
		APY:               88_000, // 8.8%
		MinStakingPeriod:  90 * 24 * time.Hour,
		LockupPeriod:      21 * 24 * time.Hour,
		IsActive:          true,
		AllowedCollateral: []string{"0x2c1f8a7bb0a9561c05c8d8b7dd2f5cc0a84eb701"},
	})

	r.AddStrategy(YieldStrategy{
		ID:           "conservative-stablecoin",
		Name:         "Conservative Stablecoin Strategy",
		Description:  "Low-risk strategy focusing on stablecoin lending with RWA collateral",
		APY:          65_000, // 6.5%
		Risk:         RiskLow,
		Protocol:     ProtocolAave,
		MinAmount:    1_000 * microUSD,
		LockupPeriod: 0,
		AutoCompound: true,
	})
	r.AddStrategy(YieldStrategy{
		ID:           "balanced-yield",
		Name:         "Balanced Yield Strategy",
		Description:  "Medium-risk strategy combining lending and staking for optimal returns",
		APY:          112_000, // 11.2%
		Risk:         RiskMedium,
		Protocol:     ProtocolCompound,
		MinAmount:    5_000 * microUSD,
		LockupPeriod: 30 * 24 * time.Hour,
		AutoCompound: true,
	})
	r.AddStrategy(YieldStrategy{
		ID:           "aggressive-defi",
		Name:         "Aggressive DeFi Strategy",
		Description:  "High-yield strategy leveraging multiple protocols and yield farming",
		APY:          187_000, // 18.7%
		Risk:         RiskHigh,
		Protocol:     ProtocolOneChain,
		MinAmount:    10_000 * microUSD,
		LockupPeriod: 90 * 24 * time.Hour,
		AutoCompound: false,
	})

	return r
}
