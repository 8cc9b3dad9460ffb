package handlers

import (
	"bytes"
	"context"
	"errors"
	"image"
	"io"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/maneifest/internal/config"
	"github.com/kozaktomas/maneifest/internal/constants"
	"github.com/kozaktomas/maneifest/internal/logger"
	"github.com/kozaktomas/maneifest/internal/mask"
	"github.com/kozaktomas/maneifest/internal/segmentation"
)

// Segmenter computes a category mask for a canvas PNG.
type Segmenter interface {
	Segment(ctx context.Context, canvasPNG []byte) (*segmentation.CategoryMask, error)
}

// MasksHandler builds edit masks from uploaded photos.
type MasksHandler struct {
	config    *config.Config
	segmenter Segmenter
	log       logrus.FieldLogger
}

// NewMasksHandler creates a masks handler. segmenter may be nil, masks without an
// uploaded segmentation then use the fallback gradient.
func NewMasksHandler(cfg *config.Config, segmenter Segmenter, log logrus.FieldLogger) *MasksHandler {
	return &MasksHandler{
		config:    cfg,
		segmenter: segmenter,
		log:       logger.OrDiscard(log),
	}
}

// Create accepts a multipart form with a `photo` file, an optional `segmentation`
// label PNG and an optional `canvas` size, and responds with the mask PNG.
func (h *MasksHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	photo, err := readFormFile(r, "photo")
	if err != nil {
		respondError(w, http.StatusBadRequest, "photo is required")
		return
	}

	size := h.config.Capture.CanvasSize
	if v := r.FormValue("canvas"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > constants.MaxCanvasSize {
			respondError(w, http.StatusBadRequest, "canvas must be an integer between 1 and 4096")
			return
		}
		size = n
	}

	img, _, err := image.Decode(bytes.NewReader(photo))
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, mask.ErrDecode.Error())
		return
	}
	canvas := mask.CoverFit(img, size)

	var seg *segmentation.CategoryMask
	if data, err := readFormFile(r, "segmentation"); err == nil {
		seg, err = segmentation.Decode(data)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid segmentation: "+err.Error())
			return
		}
	} else if h.segmenter != nil {
		seg = h.segment(r.Context(), canvas)
	}

	res, err := mask.SynthesizeCanvas(canvas, seg, h.config.MaskOptions())
	if err != nil {
		if errors.Is(err, mask.ErrDecode) {
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := mask.EncodeMaskPNG(res.Mask)
	if err != nil {
		h.log.WithError(err).Error("failed to encode mask")
		respondError(w, http.StatusInternalServerError, "failed to encode mask")
		return
	}

	fields := logger.Fields{"canvas": size, "source": res.Source}
	if res.FallbackReason != "" {
		fields["reason"] = res.FallbackReason
		w.Header().Set("X-Mask-Fallback-Reason", res.FallbackReason)
	}
	h.log.WithFields(fields).Debug("mask synthesized")

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Mask-Source", string(res.Source))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// segment asks the segmentation server for a mask. Failures are logged and yield nil,
// so the mask falls back to the gradient.
func (h *MasksHandler) segment(ctx context.Context, canvas *image.RGBA) *segmentation.CategoryMask {
	data, err := mask.EncodeCanvasPNG(canvas)
	if err != nil {
		h.log.WithError(err).Warn("failed to encode canvas for segmentation")
		return nil
	}
	seg, err := h.segmenter.Segment(ctx, data)
	if err != nil {
		h.log.WithError(err).Warn("segmentation failed, using fallback mask")
		return nil
	}
	return seg
}

func readFormFile(r *http.Request, name string) ([]byte, error) {
	file, _, err := r.FormFile(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}
