/*
 * @module api/controllers/response_test
 * @description 响应构造测试，覆盖流水线错误到HTTP状态码与分类码的映射
 * @architecture 测试层
 * @documentReference ai_docs/greenroute_pipeline_impl.md 第9节
 * @stateFlow 错误构造 -> 响应渲染器断言
 * @rules 致命流水线错误返回500并携带分类码，普通业务错误保持400
 * @dependencies testing, testify
 * @refs response.go
 */

package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenroute-service/service/pipeline"
)

func TestPipelineErrorResponse(t *testing.T) {
	t.Run("订单键不可解析返回500和分类码", func(t *testing.T) {
		err := pipeline.NewUnresolvableKeyError("cost_breakdown")
		renderer := PipelineErrorResponse("合并运行失败", err)

		resp, ok := renderer.(*apiRenderer)
		require.True(t, ok)
		assert.Equal(t, http.StatusInternalServerError, resp.httpStatus)
		assert.Equal(t, http.StatusInternalServerError, resp.Status)
		assert.Equal(t, string(pipeline.ErrCodeUnresolvableKey), resp.Code)
		assert.Contains(t, resp.Msg, "合并运行失败")
		assert.Contains(t, resp.Msg, "cost_breakdown")
	})

	t.Run("输入文件缺失返回500和分类码", func(t *testing.T) {
		err := pipeline.NewMissingInputFileError("orders.csv", errors.New("no such file"))
		renderer := PipelineErrorResponse("获取合并结果失败", err)

		resp, ok := renderer.(*apiRenderer)
		require.True(t, ok)
		assert.Equal(t, http.StatusInternalServerError, resp.httpStatus)
		assert.Equal(t, string(pipeline.ErrCodeMissingInputFile), resp.Code)
	})

	t.Run("包装链中的流水线错误同样被识别", func(t *testing.T) {
		err := fmt.Errorf("执行失败: %w", pipeline.NewUnexpectedError("脚本执行失败", nil))
		renderer := PipelineErrorResponse("合并运行失败", err)

		resp, ok := renderer.(*apiRenderer)
		require.True(t, ok)
		assert.Equal(t, http.StatusInternalServerError, resp.httpStatus)
		assert.Equal(t, string(pipeline.ErrCodeUnexpected), resp.Code)
	})

	t.Run("非流水线错误保持400且无分类码", func(t *testing.T) {
		err := fmt.Errorf("数据集不存在: missing-id")
		renderer := PipelineErrorResponse("获取合并结果失败", err)

		resp, ok := renderer.(*apiRenderer)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, resp.httpStatus)
		assert.Empty(t, resp.Code)
		assert.Contains(t, resp.Msg, "missing-id")
	})
}
