package evaluation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai-hiring-go/internal/logger"
	"ai-hiring-go/internal/storage"

	"github.com/cloudwego/hertz/pkg/app/client"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// ObjectSource 简历对象的读取方式，由 storage.MinIO 实现
type ObjectSource interface {
	Get(ctx context.Context, ref storage.ObjectRef) ([]byte, error)
	PresignedURL(ctx context.Context, ref storage.ObjectRef, expiry time.Duration) (string, error)
}

// errUnauthorized 直连地址需要签名
var errUnauthorized = errors.New("对象地址拒绝访问")

// ResumeFetcher 优先通过 SDK 读取对象；失败时走直连地址，401/403 后换预签名地址重试
type ResumeFetcher struct {
	objects ObjectSource
	client  *client.Client
	timeout time.Duration
}

// NewResumeFetcher client 为 nil 时只走 SDK
func NewResumeFetcher(objects ObjectSource, c *client.Client, timeout time.Duration) *ResumeFetcher {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ResumeFetcher{objects: objects, client: c, timeout: timeout}
}

// Fetch 读取任务指向的简历字节
func (f *ResumeFetcher) Fetch(ctx context.Context, msg *storage.EvaluationJobMessage) ([]byte, error) {
	ref := storage.ObjectRef{Bucket: msg.StorageBucket, Path: msg.ResumePath}
	var sdkErr error
	if f.objects != nil && ref.Bucket != "" && ref.Path != "" {
		data, err := f.objects.Get(ctx, ref)
		if err == nil {
			return data, nil
		}
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, err
		}
		sdkErr = err
		logger.Ctx(ctx).Warn().Err(err).Str("candidate_id", msg.CandidateID).Msg("SDK 读取简历失败，尝试直连地址")
	}

	if f.client == nil || msg.StorageURL == "" {
		if sdkErr != nil {
			return nil, sdkErr
		}
		return nil, fmt.Errorf("简历位置缺失: bucket=%q path=%q", ref.Bucket, ref.Path)
	}

	data, err := f.download(ctx, msg.StorageURL)
	if !errors.Is(err, errUnauthorized) || f.objects == nil {
		return data, err
	}

	signed, signErr := f.objects.PresignedURL(ctx, ref, 0)
	if signErr != nil {
		return nil, fmt.Errorf("%v; 生成预签名地址失败: %w", err, signErr)
	}
	logger.Ctx(ctx).Info().Str("candidate_id", msg.CandidateID).Msg("直连地址无权限，改用预签名地址")
	return f.download(ctx, signed)
}

func (f *ResumeFetcher) download(ctx context.Context, url string) ([]byte, error) {
	req := protocol.AcquireRequest()
	resp := protocol.AcquireResponse()
	defer protocol.ReleaseRequest(req)
	defer protocol.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.SetMethod(consts.MethodGet)
	if err := f.client.DoTimeout(ctx, req, resp, f.timeout); err != nil {
		return nil, fmt.Errorf("下载简历失败: %w", err)
	}
	switch status := resp.StatusCode(); {
	case status == consts.StatusUnauthorized || status == consts.StatusForbidden:
		return nil, fmt.Errorf("%w: HTTP %d", errUnauthorized, status)
	case status >= 400:
		return nil, fmt.Errorf("下载简历失败: HTTP %d", status)
	}
	body := resp.Body()
	if len(body) == 0 {
		return nil, errors.New("简历文件为空")
	}
	// resp 会被回收，复制一份
	out := make([]byte, len(body))
	copy(out, body)
	return out, nil
}
