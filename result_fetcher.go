package luckypick

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"
)

// ResultFetcher pulls published results of one game, newest first.
// An empty page means there is nothing older to fetch.
type ResultFetcher interface {
	GameCode() string
	FetchPage(ctx context.Context, page, pageSize int) ([]DrawRecord, error)
}

const (
	fucaiDrawNoticePath = "/cwl_admin/front/cwlkj/search/kjxx/findDrawNotice"
	ticaiHistoryPath    = "/gateway/lottery/getHistoryPageListV1.qry"

	// ticaiDLTGameNo 体彩接口中大乐透的游戏编号
	ticaiDLTGameNo = "85"

	fetchUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// httpFetcher 官方开奖接口客户端的公共部分
type httpFetcher struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  Logger
}

func newHTTPFetcher(baseURL string, config *FetchConfig, logger Logger) httpFetcher {
	if logger == nil {
		logger = NewSilentLogger()
	}
	return httpFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: config.Timeout},
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1),
		logger:  logger,
	}
}

// getJSON waits for the rate limiter, then GETs path and decodes the body into v.
// Transport failures, 429 and 5xx are retryable; other statuses are not.
func (f *httpFetcher) getJSON(ctx context.Context, path string, query url.Values, v any) error {
	if err := f.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for fetch slot: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return ErrInvalidParameters.WithCause(err).WithDetails(err.Error())
	}
	// 模拟浏览器请求, 官方接口会拒绝缺少这些头的请求
	req.Header.Set("User-Agent", fetchUserAgent)
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	req.Header.Set("Referer", f.baseURL+"/")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := f.client.Do(req)
	if err != nil {
		return ErrFetchFailed.WithCause(err).WithDetailsf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		e := ErrFetchFailed.WithDetailsf("GET %s: status %d", path, resp.StatusCode)
		e.Retryable = resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests
		return e
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return ErrDeserializationFailed.WithCause(err).WithDetailsf("GET %s: %v", path, err)
	}
	return nil
}

func validatePage(page, pageSize int) error {
	if page < 1 {
		return ErrInvalidParameters.WithDetailsf("page %d must be positive", page)
	}
	if pageSize < 1 || pageSize > MaxFetchPageSize {
		return ErrInvalidParameters.WithDetailsf("page size %d must be in [1, %d]", pageSize, MaxFetchPageSize)
	}
	return nil
}

// parseNumbers splits "01,05,16" or "05 07 08" into ints
func parseNumbers(s string) ([]int, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '+' })
	nums := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("bad number %q in %q", f, s)
		}
		nums = append(nums, n)
	}
	return nums, nil
}

// fucaiDrawNotice 福彩开奖公告接口响应
type fucaiDrawNotice struct {
	State   int    `json:"state"`
	Message string `json:"message"`
	Total   int    `json:"total"`
	Result  []struct {
		Code string `json:"code"` // 期号
		Date string `json:"date"` // 2025-09-28(日)
		Red  string `json:"red"`  // 01,05,16,20,21,32
		Blue string `json:"blue"` // 09
	} `json:"result"`
}

// FucaiFetcher reads ssq results from the China Welfare Lottery draw notice API
type FucaiFetcher struct {
	httpFetcher
}

// NewFucaiFetcher creates a fetcher for config.FucaiURL
func NewFucaiFetcher(config *FetchConfig, logger Logger) *FucaiFetcher {
	if config == nil {
		config = DefaultFetchConfig()
	}
	return &FucaiFetcher{httpFetcher: newHTTPFetcher(config.FucaiURL, config, logger)}
}

// GameCode returns GameSSQ
func (f *FucaiFetcher) GameCode() string { return GameSSQ }

// FetchPage returns one page of ssq results. Malformed entries are logged and skipped.
func (f *FucaiFetcher) FetchPage(ctx context.Context, page, pageSize int) ([]DrawRecord, error) {
	if err := validatePage(page, pageSize); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("name", GameSSQ)
	q.Set("issueCount", "")
	q.Set("issueStart", "")
	q.Set("issueEnd", "")
	q.Set("dayStart", "")
	q.Set("dayEnd", "")
	q.Set("pageNo", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(pageSize))
	q.Set("week", "")
	q.Set("systemType", "PC")

	var notice fucaiDrawNotice
	if err := f.getJSON(ctx, fucaiDrawNoticePath, q, &notice); err != nil {
		return nil, err
	}
	if notice.State != 0 {
		e := ErrFetchFailed.WithGame(GameSSQ).WithDetailsf("state %d: %s", notice.State, notice.Message)
		e.Retryable = false
		return nil, e
	}

	records := make([]DrawRecord, 0, len(notice.Result))
	for _, item := range notice.Result {
		red, err := parseNumbers(item.Red)
		if err != nil {
			f.logger.Error("Skipping ssq period %s: %v", item.Code, err)
			continue
		}
		blue, err := parseNumbers(item.Blue)
		if err != nil {
			f.logger.Error("Skipping ssq period %s: %v", item.Code, err)
			continue
		}
		date, _, _ := strings.Cut(item.Date, "(")
		records = append(records, DrawRecord{Period: item.Code, Date: date, Red: red, Blue: blue})
	}

	f.logger.Debug("Fetched ssq page %d: %d of %d results", page, len(records), len(notice.Result))
	return records, nil
}

// ticaiHistoryPage 体彩历史开奖接口响应
type ticaiHistoryPage struct {
	Value struct {
		List []struct {
			LotteryDrawNum    string `json:"lotteryDrawNum"`    // 25109
			LotteryDrawTime   string `json:"lotteryDrawTime"`   // 2025-09-27
			LotteryDrawResult string `json:"lotteryDrawResult"` // 05 07 08 15 33 06 10
		} `json:"list"`
		Pages int `json:"pages"`
		Total int `json:"total"`
	} `json:"value"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// TicaiFetcher reads dlt results from the China Sports Lottery history API
type TicaiFetcher struct {
	httpFetcher
}

// NewTicaiFetcher creates a fetcher for config.TicaiURL
func NewTicaiFetcher(config *FetchConfig, logger Logger) *TicaiFetcher {
	if config == nil {
		config = DefaultFetchConfig()
	}
	return &TicaiFetcher{httpFetcher: newHTTPFetcher(config.TicaiURL, config, logger)}
}

// GameCode returns GameDLT
func (f *TicaiFetcher) GameCode() string { return GameDLT }

// ticaiPeriod widens the five-digit period to seven digits: 25109 -> 2025109
func ticaiPeriod(num string) (string, error) {
	switch len(num) {
	case 5:
		return "20" + num, nil
	case 7:
		return num, nil
	default:
		return "", fmt.Errorf("bad period %q", num)
	}
}

// FetchPage returns one page of dlt results. Malformed entries are logged and skipped.
func (f *TicaiFetcher) FetchPage(ctx context.Context, page, pageSize int) ([]DrawRecord, error) {
	if err := validatePage(page, pageSize); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("gameNo", ticaiDLTGameNo)
	q.Set("provinceId", "0")
	q.Set("pageSize", strconv.Itoa(pageSize))
	q.Set("isVerify", "1")
	q.Set("pageNo", strconv.Itoa(page))

	var history ticaiHistoryPage
	if err := f.getJSON(ctx, ticaiHistoryPath, q, &history); err != nil {
		return nil, err
	}
	if history.ErrorCode != "0" {
		e := ErrFetchFailed.WithGame(GameDLT).WithDetailsf("error code %s: %s", history.ErrorCode, history.ErrorMessage)
		e.Retryable = false
		return nil, e
	}

	front := DefaultGames()[GameDLT].Red.SelectCount
	records := make([]DrawRecord, 0, len(history.Value.List))
	for _, item := range history.Value.List {
		period, err := ticaiPeriod(item.LotteryDrawNum)
		if err != nil {
			f.logger.Error("Skipping dlt result: %v", err)
			continue
		}
		nums, err := parseNumbers(item.LotteryDrawResult)
		if err != nil || len(nums) <= front {
			f.logger.Error("Skipping dlt period %s: bad result %q", period, item.LotteryDrawResult)
			continue
		}
		records = append(records, DrawRecord{
			Period: period,
			Date:   item.LotteryDrawTime,
			Red:    nums[:front:front],
			Blue:   nums[front:],
		})
	}

	f.logger.Debug("Fetched dlt page %d: %d of %d results", page, len(records), len(history.Value.List))
	return records, nil
}
