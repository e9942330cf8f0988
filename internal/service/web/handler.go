package web

import (
	"encoding/base64"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"nodesieve/internal/shared/logger"
	"nodesieve/internal/shared/types"
	"nodesieve/nodepool/report"
)

// Handler 持有输出文件的位置，处理所有 HTTP 请求。
type Handler struct {
	nodesPath  string
	reportPath string
}

func NewHandler(out types.OutputConf) *Handler {
	return &Handler{
		nodesPath:  filepath.Join(out.Dir, out.NodesFile),
		reportPath: filepath.Join(out.Dir, out.ReportFile),
	}
}

func (h *Handler) Health(c *gin.Context) {
	_, err := os.Stat(h.nodesPath)
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"has_nodes": err == nil,
	})
}

// Subscription 返回节点列表。format=base64 时返回整体 base64 编码的订阅内容。
func (h *Handler) Subscription(c *gin.Context) {
	data, err := os.ReadFile(h.nodesPath)
	if err != nil {
		h.fail(c, err, "nodes file not available")
		return
	}
	if c.Query("format") == "base64" {
		c.String(http.StatusOK, base64.StdEncoding.EncodeToString(data))
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", data)
}

// Report 返回最近一次的质量报告。
func (h *Handler) Report(c *gin.Context) {
	r, err := report.Read(h.reportPath)
	if err != nil {
		h.fail(c, err, "report not available")
		return
	}
	c.PureJSON(http.StatusOK, r)
}

func (h *Handler) fail(c *gin.Context, err error, msg string) {
	if errors.Is(err, fs.ErrNotExist) {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "msg": msg})
		return
	}
	l := logger.WithComponent("WebServer")
	l.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Failed to read result file.")
	c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "msg": msg})
}
