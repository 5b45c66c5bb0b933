package lark

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkbitable "github.com/larksuite/oapi-sdk-go/v3/service/bitable/v1"
	larkdrive "github.com/larksuite/oapi-sdk-go/v3/service/drive/v1"

	"github.com/phrazzld/essaymark/internal/config"
	"github.com/phrazzld/essaymark/internal/redact"
)

// Record is one bitable row as returned by the open platform.
type Record struct {
	ID     string
	Fields map[string]any
}

// RecordPage is one page of a record listing.
type RecordPage struct {
	Records   []Record
	PageToken string
	HasMore   bool
}

// RecordAPI is the subset of the open platform used by Store.
type RecordAPI interface {
	ListRecords(ctx context.Context, filter, pageToken string, pageSize int) (RecordPage, error)
	UpdateRecord(ctx context.Context, recordID string, fields map[string]any) error
	DeleteRecords(ctx context.Context, recordIDs []string) error
	DownloadMedia(ctx context.Context, fileToken string) ([]byte, error)
}

// APIError is a non-zero response code from the open platform.
type APIError struct {
	Op   string
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lark %s: code %d: %s", e.Op, e.Code, e.Msg)
}

// SDKAPI implements RecordAPI with the official SDK client.
type SDKAPI struct {
	client   *lark.Client
	appToken string
	tableID  string
}

var _ RecordAPI = (*SDKAPI)(nil)

// NewSDKAPI builds an SDK client for the configured app and table.
// Tenant access tokens are fetched and cached by the SDK.
func NewSDKAPI(cfg config.LarkConfig, timeout time.Duration, logger *slog.Logger) *SDKAPI {
	opts := []lark.ClientOptionFunc{
		lark.WithLogger(&slogLarkLogger{logger: logger.With("component", "lark_sdk")}),
		lark.WithLogLevel(larkcore.LogLevelWarn),
		lark.WithReqTimeout(timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, lark.WithOpenBaseUrl(cfg.BaseURL))
	}

	return &SDKAPI{
		client:   lark.NewClient(cfg.AppID, cfg.AppSecret, opts...),
		appToken: cfg.AppToken,
		tableID:  cfg.TableID,
	}
}

// ListRecords implements RecordAPI.
func (a *SDKAPI) ListRecords(ctx context.Context, filter, pageToken string, pageSize int) (RecordPage, error) {
	builder := larkbitable.NewListAppTableRecordReqBuilder().
		AppToken(a.appToken).
		TableId(a.tableID).
		PageSize(pageSize)
	if filter != "" {
		builder = builder.Filter(filter)
	}
	if pageToken != "" {
		builder = builder.PageToken(pageToken)
	}

	resp, err := a.client.Bitable.V1.AppTableRecord.List(ctx, builder.Build())
	if err != nil {
		return RecordPage{}, err
	}
	if !resp.Success() {
		return RecordPage{}, &APIError{Op: "list records", Code: resp.Code, Msg: resp.Msg}
	}

	var page RecordPage
	if resp.Data == nil {
		return page, nil
	}
	for _, item := range resp.Data.Items {
		if item == nil {
			continue
		}
		page.Records = append(page.Records, Record{
			ID:     stringValue(item.RecordId),
			Fields: item.Fields,
		})
	}
	page.PageToken = stringValue(resp.Data.PageToken)
	page.HasMore = resp.Data.HasMore != nil && *resp.Data.HasMore
	return page, nil
}

// UpdateRecord implements RecordAPI.
func (a *SDKAPI) UpdateRecord(ctx context.Context, recordID string, fields map[string]any) error {
	req := larkbitable.NewUpdateAppTableRecordReqBuilder().
		AppToken(a.appToken).
		TableId(a.tableID).
		RecordId(recordID).
		AppTableRecord(larkbitable.NewAppTableRecordBuilder().Fields(fields).Build()).
		Build()

	resp, err := a.client.Bitable.V1.AppTableRecord.Update(ctx, req)
	if err != nil {
		return err
	}
	if !resp.Success() {
		return &APIError{Op: "update record", Code: resp.Code, Msg: resp.Msg}
	}
	return nil
}

// DeleteRecords implements RecordAPI.
func (a *SDKAPI) DeleteRecords(ctx context.Context, recordIDs []string) error {
	req := larkbitable.NewBatchDeleteAppTableRecordReqBuilder().
		AppToken(a.appToken).
		TableId(a.tableID).
		Body(larkbitable.NewBatchDeleteAppTableRecordReqBodyBuilder().Records(recordIDs).Build()).
		Build()

	resp, err := a.client.Bitable.V1.AppTableRecord.BatchDelete(ctx, req)
	if err != nil {
		return err
	}
	if !resp.Success() {
		return &APIError{Op: "batch delete records", Code: resp.Code, Msg: resp.Msg}
	}
	return nil
}

// DownloadMedia implements RecordAPI.
func (a *SDKAPI) DownloadMedia(ctx context.Context, fileToken string) ([]byte, error) {
	req := larkdrive.NewDownloadMediaReqBuilder().FileToken(fileToken).Build()

	resp, err := a.client.Drive.V1.Media.Download(ctx, req)
	if err != nil {
		return nil, err
	}
	if !resp.Success() {
		return nil, &APIError{Op: "download media", Code: resp.Code, Msg: resp.Msg}
	}
	if resp.File == nil {
		return nil, &APIError{Op: "download media", Msg: "empty body"}
	}
	return io.ReadAll(resp.File)
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// slogLarkLogger adapts the SDK logger interface to slog. SDK messages can
// carry access tokens and are redacted.
type slogLarkLogger struct {
	logger *slog.Logger
}

func (l *slogLarkLogger) Debug(ctx context.Context, args ...interface{}) {
	l.logger.DebugContext(ctx, redact.String(fmt.Sprint(args...)))
}

func (l *slogLarkLogger) Info(ctx context.Context, args ...interface{}) {
	l.logger.InfoContext(ctx, redact.String(fmt.Sprint(args...)))
}

func (l *slogLarkLogger) Warn(ctx context.Context, args ...interface{}) {
	l.logger.WarnContext(ctx, redact.String(fmt.Sprint(args...)))
}

func (l *slogLarkLogger) Error(ctx context.Context, args ...interface{}) {
	l.logger.ErrorContext(ctx, redact.String(fmt.Sprint(args...)))
}
