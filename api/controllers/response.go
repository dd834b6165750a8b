package controllers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"

	"greenroute-service/service/pipeline"
)

// APIResponse 统一API响应结构
type APIResponse struct {
	Status int         `json:"status" example:"0"`
	Msg    string      `json:"msg" example:"操作成功"`
	Code   string      `json:"code,omitempty" example:"unresolvable_key"` // 流水线错误分类码
	Data   interface{} `json:"data,omitempty"`
}

// PaginatedResponse 分页响应结构
type PaginatedResponse struct {
	Status int         `json:"status" example:"0"`
	Msg    string      `json:"msg" example:"操作成功"`
	Data   interface{} `json:"data"`
	Total  int64       `json:"total" example:"100"`
	Page   int         `json:"page" example:"1"`
	Size   int         `json:"size" example:"10"`
}

// apiRenderer 带HTTP状态码的响应渲染器
type apiRenderer struct {
	APIResponse
	httpStatus int
}

// Render 实现render.Renderer接口
func (rd *apiRenderer) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, rd.httpStatus)
	return nil
}

// SuccessResponse 构造成功响应
func SuccessResponse(msg string, data interface{}) render.Renderer {
	return &apiRenderer{
		APIResponse: APIResponse{Status: 0, Msg: msg, Data: data},
		httpStatus:  http.StatusOK,
	}
}

// ErrorResponse 构造错误响应，err非空时拼接错误详情
func ErrorResponse(status int, msg string, err error) render.Renderer {
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &apiRenderer{
		APIResponse: APIResponse{Status: status, Msg: msg},
		httpStatus:  status,
	}
}

// PipelineErrorResponse 构造流水线错误响应
// 致命流水线错误（文件缺失、主键不可解析、未预期异常）统一返回500并携带分类码；
// 其余错误（如数据集不存在）按400处理
func PipelineErrorResponse(msg string, err error) render.Renderer {
	if pipelineErr, ok := pipeline.AsPipelineError(err); ok {
		return &apiRenderer{
			APIResponse: APIResponse{
				Status: http.StatusInternalServerError,
				Msg:    fmt.Sprintf("%s: %s", msg, pipelineErr.Message),
				Code:   string(pipelineErr.Code),
			},
			httpStatus: http.StatusInternalServerError,
		}
	}
	return ErrorResponse(http.StatusBadRequest, msg, err)
}

// PaginatedSuccessResponse 构造分页成功响应
func PaginatedSuccessResponse(msg string, list interface{}, total int64, page, size int) render.Renderer {
	return &paginatedRenderer{
		PaginatedResponse: PaginatedResponse{
			Status: 0,
			Msg:    msg,
			Data:   list,
			Total:  total,
			Page:   page,
			Size:   size,
		},
	}
}

// paginatedRenderer 分页响应渲染器
type paginatedRenderer struct {
	PaginatedResponse
}

// Render 实现render.Renderer接口
func (rd *paginatedRenderer) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, http.StatusOK)
	return nil
}
