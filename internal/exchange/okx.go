package exchange

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const okxTimestampLayout = "2006-01-02T15:04:05.000Z"

// OkxClient - REST клиент OKX API v5.
// Подпись запроса: Base64(HMAC-SHA256(timestamp + method + path + body)).
type OkxClient struct {
	baseURL   string
	simulated bool

	// credMu защищает учетные данные и флаг connected: Connect
	// может прийти из хендлера параллельно с фоновыми запросами
	credMu     sync.RWMutex
	apiKey     string
	secretKey  string
	passphrase string
	connected  bool

	httpClient *http.Client
}

// NewOkxClient создает новый клиент OKX.
// Использует общий HTTP клиент с connection pooling.
func NewOkxClient(baseURL string, simulated bool) *OkxClient {
	return &OkxClient{
		baseURL:    baseURL,
		simulated:  simulated,
		httpClient: sharedHTTPClient(),
	}
}

// Connect сохраняет учетные данные и проверяет их запросом баланса
func (c *OkxClient) Connect(apiKey, secret, passphrase string) error {
	c.credMu.Lock()
	c.apiKey = apiKey
	c.secretKey = secret
	c.passphrase = passphrase
	c.connected = false
	c.credMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := c.GetAccountBalance(ctx); err != nil {
		return fmt.Errorf("failed to connect to OKX: %w", err)
	}

	c.credMu.Lock()
	c.connected = true
	c.credMu.Unlock()
	return nil
}

// IsConnected сообщает, прошла ли проверка учетных данных
func (c *OkxClient) IsConnected() bool {
	c.credMu.RLock()
	defer c.credMu.RUnlock()
	return c.connected
}

// credentials снимает согласованный снимок учетных данных для подписи
func (c *OkxClient) credentials() (apiKey, secret, passphrase string) {
	c.credMu.RLock()
	defer c.credMu.RUnlock()
	return c.apiKey, c.secretKey, c.passphrase
}

// GetName возвращает имя биржи
func (c *OkxClient) GetName() string {
	return "okx"
}

// sign создает подпись запроса для OKX API v5
func sign(secret, timestamp, method, requestPath, body string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(timestamp + method + requestPath + body))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// doRequest выполняет HTTP запрос к OKX API.
// requestPath для подписи включает query string.
func (c *OkxClient) doRequest(ctx context.Context, method, endpoint string, query url.Values, payload any, signed bool) ([]byte, error) {
	requestPath := endpoint
	if len(query) > 0 {
		requestPath += "?" + query.Encode()
	}

	var bodyStr string
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyStr = string(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, bytes.NewReader([]byte(bodyStr)))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	if signed {
		apiKey, secret, passphrase := c.credentials()
		timestamp := time.Now().UTC().Format(okxTimestampLayout)
		req.Header.Set("OK-ACCESS-KEY", apiKey)
		req.Header.Set("OK-ACCESS-SIGN", sign(secret, timestamp, method, requestPath, bodyStr))
		req.Header.Set("OK-ACCESS-TIMESTAMP", timestamp)
		req.Header.Set("OK-ACCESS-PASSPHRASE", passphrase)
	}
	if c.simulated {
		req.Header.Set("x-simulated-trading", "1")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	// Проверяем базовый ответ
	var baseResp struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.Unmarshal(body, &baseResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if baseResp.Code != "0" {
		return nil, &ExchangeError{
			Exchange: "okx",
			Code:     baseResp.Code,
			Message:  baseResp.Msg,
		}
	}

	return body, nil
}

// GetAccountBalance получает сводный баланс торгового счета.
// Отсутствующий uPnL в ответе трактуется как ноль.
func (c *OkxClient) GetAccountBalance(ctx context.Context) (*AccountBalance, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/api/v5/account/balance", nil, nil, true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []struct {
			TotalEq string `json:"totalEq"`
			Details []struct {
				Ccy     string `json:"ccy"`
				Eq      string `json:"eq"`
				AvailEq string `json:"availEq"`
				Upl     string `json:"upl"`
			} `json:"details"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode balance: %w", err)
	}

	balance := &AccountBalance{FetchedAt: time.Now()}
	if len(resp.Data) == 0 {
		return balance, nil
	}

	balance.TotalEquity = parseDecimal(resp.Data[0].TotalEq)
	for _, d := range resp.Data[0].Details {
		balance.Details = append(balance.Details, AssetBalance{
			Currency:      d.Ccy,
			Equity:        parseDecimal(d.Eq),
			Available:     parseDecimal(d.AvailEq),
			UnrealizedPnL: parseDecimal(d.Upl),
		})
	}

	return balance, nil
}

// GetPositions получает открытые позиции на бирже
func (c *OkxClient) GetPositions(ctx context.Context) ([]*ExchangePosition, error) {
	query := url.Values{}
	query.Set("instType", "SWAP")

	body, err := c.doRequest(ctx, http.MethodGet, "/api/v5/account/positions", query, nil, true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []struct {
			PosID   string `json:"posId"`
			InstID  string `json:"instId"`
			PosSide string `json:"posSide"`
			Pos     string `json:"pos"`
			AvgPx   string `json:"avgPx"`
			MarkPx  string `json:"markPx"`
			Lever   string `json:"lever"`
			Upl     string `json:"upl"`
			UTime   string `json:"uTime"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode positions: %w", err)
	}

	positions := make([]*ExchangePosition, 0, len(resp.Data))
	for _, p := range resp.Data {
		size := parseDecimal(p.Pos)
		if size.IsZero() {
			continue
		}
		positions = append(positions, &ExchangePosition{
			PositionID:    p.PosID,
			InstID:        p.InstID,
			PosSide:       p.PosSide,
			Size:          size.Abs(),
			AvgPrice:      parseDecimal(p.AvgPx),
			MarkPrice:     parseDecimal(p.MarkPx),
			Leverage:      parseDecimal(p.Lever),
			UnrealizedPnL: parseDecimal(p.Upl),
			UpdatedAt:     parseMillis(p.UTime),
		})
	}

	return positions, nil
}

// GetTicker получает текущую цену инструмента
func (c *OkxClient) GetTicker(ctx context.Context, instID string) (*Ticker, error) {
	query := url.Values{}
	query.Set("instId", instID)

	body, err := c.doRequest(ctx, http.MethodGet, "/api/v5/market/ticker", query, nil, false)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []struct {
			InstID string `json:"instId"`
			Last   string `json:"last"`
			BidPx  string `json:"bidPx"`
			AskPx  string `json:"askPx"`
			TS     string `json:"ts"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode ticker: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("ticker not found for %s", instID)
	}

	t := resp.Data[0]
	return &Ticker{
		InstID:    t.InstID,
		Last:      parseDecimal(t.Last),
		Bid:       parseDecimal(t.BidPx),
		Ask:       parseDecimal(t.AskPx),
		Timestamp: parseMillis(t.TS),
	}, nil
}

// GetInstrument получает торговые параметры инструмента (шаг лота и пр.)
func (c *OkxClient) GetInstrument(ctx context.Context, instID string) (*Instrument, error) {
	query := url.Values{}
	query.Set("instType", "SWAP")
	query.Set("instId", instID)

	body, err := c.doRequest(ctx, http.MethodGet, "/api/v5/public/instruments", query, nil, false)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []struct {
			InstID string `json:"instId"`
			LotSz  string `json:"lotSz"`
			MinSz  string `json:"minSz"`
			TickSz string `json:"tickSz"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode instruments: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("instrument not found for %s", instID)
	}

	i := resp.Data[0]
	return &Instrument{
		InstID:   i.InstID,
		LotSize:  parseDecimal(i.LotSz),
		MinSize:  parseDecimal(i.MinSz),
		TickSize: parseDecimal(i.TickSz),
	}, nil
}

// PlaceMarketOrder размещает рыночный ордер и дожидается данных об исполнении
func (c *OkxClient) PlaceMarketOrder(ctx context.Context, instID, side, posSide string, size decimal.Decimal) (*Order, error) {
	payload := map[string]string{
		"instId":  instID,
		"tdMode":  "cross",
		"side":    side,
		"posSide": posSide,
		"ordType": "market",
		"sz":      size.String(),
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/api/v5/trade/order", nil, payload, true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []struct {
			OrdID string `json:"ordId"`
			SCode string `json:"sCode"`
			SMsg  string `json:"sMsg"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode order response: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, &ExchangeError{Exchange: "okx", Message: "empty order response"}
	}
	if resp.Data[0].SCode != "0" {
		return nil, &ExchangeError{Exchange: "okx", Code: resp.Data[0].SCode, Message: resp.Data[0].SMsg}
	}

	return c.getOrder(ctx, instID, resp.Data[0].OrdID)
}

// getOrder запрашивает детали ордера: цену исполнения и комиссию
func (c *OkxClient) getOrder(ctx context.Context, instID, ordID string) (*Order, error) {
	query := url.Values{}
	query.Set("instId", instID)
	query.Set("ordId", ordID)

	body, err := c.doRequest(ctx, http.MethodGet, "/api/v5/trade/order", query, nil, true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []struct {
			OrdID     string `json:"ordId"`
			InstID    string `json:"instId"`
			Side      string `json:"side"`
			Sz        string `json:"sz"`
			AccFillSz string `json:"accFillSz"`
			AvgPx     string `json:"avgPx"`
			Fee       string `json:"fee"`
			State     string `json:"state"`
			CTime     string `json:"cTime"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode order details: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("order %s not found", ordID)
	}

	o := resp.Data[0]
	return &Order{
		ID:         o.OrdID,
		InstID:     o.InstID,
		Side:       o.Side,
		Size:       parseDecimal(o.Sz),
		FilledSize: parseDecimal(o.AccFillSz),
		AvgPrice:   parseDecimal(o.AvgPx),
		Fee:        parseDecimal(o.Fee).Abs(), // OKX отдает комиссию отрицательной
		State:      o.State,
		CreatedAt:  parseMillis(o.CTime),
	}, nil
}

// ClosePosition закрывает позицию рыночным ордером целиком
func (c *OkxClient) ClosePosition(ctx context.Context, instID, posSide string) error {
	payload := map[string]string{
		"instId":  instID,
		"mgnMode": "cross",
		"posSide": posSide,
	}

	_, err := c.doRequest(ctx, http.MethodPost, "/api/v5/trade/close-position", nil, payload, true)
	return err
}

// parseDecimal разбирает строку OKX в decimal, пустая строка дает ноль
func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// parseMillis разбирает unix-миллисекунды из строки
func parseMillis(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	var ms int64
	if _, err := fmt.Sscanf(s, "%d", &ms); err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
