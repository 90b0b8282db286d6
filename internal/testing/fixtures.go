package testing

// ScrapeEnvelopeJSON is a scraper stdout sample: three rows in the screener's mixed
// formats (numbers and formatted cells, ascending and descending strike pairs).
const ScrapeEnvelopeJSON = `{
  "success": true,
  "results": [
    {
      "ticker": "aapl", "companyName": "Apple Inc.", "price": 228.5, "priceChange": -0.42,
      "ivRank": 18.3, "ivPercentile": 41.0, "strike": "215/210", "moneyness": -5.91,
      "expDate": "2025-02-21", "daysToExp": 35, "totalOptVol": 512340,
      "probMaxProfit": 84.12, "maxProfit": 0.55, "maxLoss": 4.45, "returnPercent": 12.36
    },
    {
      "ticker": "MSFT", "companyName": "Microsoft Corporation", "price": "$425.10", "priceChange": "1.05%",
      "ivRank": "22.7", "ivPercentile": "55%", "strike": "395 / 400", "moneyness": "-6.08%",
      "expDate": "02/21/2025", "daysToExp": "35", "totalOptVol": "98,211",
      "probMaxProfit": "81.5%", "maxProfit": "$0.62", "maxLoss": "$4.38", "returnPercent": "14.16%"
    },
    {
      "ticker": "KO", "companyName": "Coca-Cola Co", "price": 62.4, "priceChange": 0.1,
      "ivRank": 9.1, "ivPercentile": 12.0, "strike": "60/57.5", "moneyness": -3.85,
      "expDate": "Feb 21, 2025", "daysToExp": 35, "totalOptVol": 40211,
      "probMaxProfit": 76.0, "maxProfit": 0.31, "maxLoss": 2.19, "returnPercent": 1.42
    }
  ]
}`

// ScrapeFailureJSON is the scraper's failure envelope.
const ScrapeFailureJSON = `{"success": false, "error": "Could not find scan named \"weekly\"", "results": []}`
