package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/pricecompare/models"
	"github.com/use-agent/pricecompare/pipeline"
)

// Comparer runs comparisons; *service.Service satisfies it.
type Comparer interface {
	Compare(ctx context.Context, req models.CompareRequest, obs pipeline.Observer) *models.CompareResponse
	Debug(ctx context.Context, req models.CompareRequest) *models.DebugResponse
}

// Compare returns a handler for POST /api/v1/compare.
//
// Orchestration flow:
//  1. Parse & validate request, apply defaults.
//  2. Service.Compare → cache lookup, pipeline run, cache store, webhook.
//  3. Return 200; a failed plan (bad query) is a 400 carrying the run.
func Compare(svc Comparer) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := bindCompare(c)
		if !ok {
			return
		}
		resp := svc.Compare(c.Request.Context(), req, nil)
		status := http.StatusOK
		if !resp.Success {
			status = http.StatusBadRequest
		}
		c.JSON(status, resp)
	}
}

// Stream returns a handler for POST /api/v1/compare/stream.
//
// Progress is sent as server-sent events named after the pipeline event
// types; the stream ends after final_result. A client disconnect cancels
// the run through the request context.
func Stream(svc Comparer) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := bindCompare(c)
		if !ok {
			return
		}

		ctx := c.Request.Context()
		events := make(chan pipeline.Event, 16)
		go func() {
			defer close(events)
			svc.Compare(ctx, req, func(e pipeline.Event) {
				select {
				case events <- e:
				case <-ctx.Done():
				}
			})
		}()

		// Let the producer finish if the client left early.
		defer func() {
			for range events {
			}
		}()

		c.Header("Cache-Control", "no-cache")
		c.Header("X-Accel-Buffering", "no")
		for {
			select {
			case e, open := <-events:
				if !open {
					return
				}
				c.SSEvent(e.Type, e.Data)
				c.Writer.Flush()
				if e.Type == pipeline.EventFinalResult {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}
}

// Debug returns a handler for POST /api/v1/compare/debug.
func Debug(svc Comparer) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := bindCompare(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, svc.Debug(c.Request.Context(), req))
	}
}
