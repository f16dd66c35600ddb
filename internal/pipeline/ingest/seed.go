// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ingest

import (
	"context"
	"time"

	"crypto-analyst/internal/storage/document"
)

// seedArticles 初始语料
var seedArticles = []document.Document{
	{
		Title:   "Bitcoin Surges Past $100k as Institutional Adoption Grows",
		Summary: "Bitcoin has reached a new all-time high of over $100,000 driven by massive inflows from institutional investors and the approval of new spot ETFs globally. Analysts predict continued momentum as major banks announce custody services.",
		URL:     "https://www.coindesk.com/markets/2026/02/01/bitcoin-breaks-100k-milestone/",
	},
	{
		Title:   "Ethereum's Latest Upgrade Promises to Slash Gas Fees by 90%",
		Summary: "The Ethereum foundation has successfully deployed the 'Dencun' upgrade, introducing proto-danksharding. This major technical shift is expected to reduce transaction costs on Layer 2 networks by nearly 90%, making DeFi more accessible.",
		URL:     "https://www.coindesk.com/tech/2026/01/28/ethereum-dencun-upgrade-live/",
	},
	{
		Title:   "SEC Approves First Spot Solana ETF in Historic Ruling",
		Summary: "In a surprise move, the SEC has approved the first spot Solana ETF, paving the way for broader institutional access to the high-speed blockchain's native token. SOL prices jumped 15% immediately following the announcement.",
		URL:     "https://www.coindesk.com/policy/2026/01/25/sec-approves-solana-etf/",
	},
	{
		Title:   "Federal Reserve Announcement Sparks Crypto Market Rally",
		Summary: "The Federal Reserve's decision to pause interest rate hikes has ignited a rally across risk assets, with the total crypto market cap reclaiming the $3 trillion mark. Investors view the pivot as a bullish signal for digital assets.",
		URL:     "https://www.coindesk.com/markets/2026/01/20/fed-rate-pause-bullish-crypto/",
	},
	{
		Title:   "DeFi Giant Uniswap Launches V5 with Cross-Chain Liquidity",
		Summary: "Uniswap Labs has unveiled Uniswap V5, featuring native cross-chain swaps and an automated liquidity management engine. The update aims to unify fragmented liquidity across Ethereum, Arbitrum, Optimism, and Base.",
		URL:     "https://www.coindesk.com/business/2026/01/15/uniswap-v5-launch/",
	},
	{
		Title:   "MicroStrategy Acquires Additional 10,000 BTC",
		Summary: "MicroStrategy continues its aggressive Bitcoin accumulation strategy, purchasing another 10,000 BTC at an average price of $95,000. Michael Saylor reaffirmed the company's commitment to Bitcoin as a primary treasury reserve asset.",
		URL:     "https://www.coindesk.com/business/2026/01/10/microstrategy-buys-more-bitcoin/",
	},
	{
		Title:   "Japan Implements Framework for Stablecoin Adoptions",
		Summary: "Japan's FSA has implemented a new regulatory framework allowing banks and registered exchange providers to issue stablecoins. The move is expected to boost web3 adoption in the world's third-largest economy.",
		URL:     "https://www.coindesk.com/policy/2026/01/05/japan-stablecoin-rules-live/",
	},
	{
		Title:   "BlackRock Tokenizes $10B Real Estate Fund on Ethereum",
		Summary: "Asset management titan BlackRock has tokenized a $10 billion real estate fund on the Ethereum blockchain, allowing for 24/7 trading and fractional ownership. This marks a significant milestone in the RWA (Real World Assets) sector.",
		URL:     "https://www.coindesk.com/business/2026/01/02/blackrock-tokenizes-real-estate-fund/",
	},
	{
		Title:   "Arbitrage Opportunities Rise as DEX Volumes Overtake CEXs",
		Summary: "For the first time in history, monthly trading volume on decentralized exchanges (DEXs) has surpassed centralized exchanges (CEXs). This shift has created lucrative arbitrage opportunities between on-chain pools and traditional order books.",
		URL:     "https://www.coindesk.com/markets/2025/12/28/dex-volume-flips-cex/",
	},
	{
		Title:   "Ripple Wins Final Appeal Against SEC, XRP Relisted Everywhere",
		Summary: "The multi-year legal battle between Ripple and the SEC has concluded with a decisive victory for Ripple. Major US exchanges have immediately relisted XRP, leading to a massive surge in trading volume and price.",
		URL:     "https://www.coindesk.com/policy/2025/12/20/ripple-wins-sec-appeal-final/",
	},
}

// SeedDocuments 返回初始语料副本；第 i 篇的发布时间为 now 往前 (n-i) 天
func SeedDocuments(now time.Time) []document.Document {
	out := make([]document.Document, len(seedArticles))
	for i, d := range seedArticles {
		d.PublishedAt = now.Add(-time.Duration(len(seedArticles)-i) * 24 * time.Hour)
		out[i] = d
	}
	return out
}

// Seed 向量化初始语料并按 url 覆盖写入
func (s *Service) Seed(ctx context.Context) (int, error) {
	n, err := s.Index(ctx, SeedDocuments(time.Now().UTC()))
	if err != nil {
		return 0, err
	}
	s.logger.Info("初始语料写入完成", "articles", n)
	return n, nil
}
