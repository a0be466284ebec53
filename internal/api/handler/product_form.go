package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"sweet_shop/internal/common"
	"sweet_shop/internal/platform/storage"

	"github.com/spf13/cast"
)

const (
	imageField = "image"
	// multipart overhead allowed on top of the image itself
	formOverhead   = 1 << 20
	maxRequestBody = storage.MaxImageSize + formOverhead
)

// productForm is the product payload after transport decoding. Numeric fields
// stay untyped until cast, since multipart sends strings and JSON sends numbers.
type productForm struct {
	Name        *string
	Description *string
	Price       any
	Quantity    any
	Image       *storage.ImageUpload
}

type productJSON struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Price       any     `json:"price"`
	Quantity    any     `json:"quantity"`
}

func parseProductForm(w http.ResponseWriter, r *http.Request) (*productForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxRequestBody); err != nil {
			return nil, bodyError(err)
		}
		form := formValues(r)
		img, err := readImage(r)
		if err != nil {
			return nil, err
		}
		form.Image = img
		return form, nil
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, bodyError(err)
		}
		return formValues(r), nil
	default:
		var body productJSON
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			if errors.Is(err, io.EOF) {
				return &productForm{}, nil
			}
			return nil, bodyError(err)
		}
		return &productForm{
			Name:        body.Name,
			Description: body.Description,
			Price:       body.Price,
			Quantity:    body.Quantity,
		}, nil
	}
}

func formValues(r *http.Request) *productForm {
	form := &productForm{
		Name:        formString(r, "name"),
		Description: formString(r, "description"),
	}
	if v := formString(r, "price"); v != nil {
		form.Price = *v
	}
	if v := formString(r, "quantity"); v != nil {
		form.Quantity = *v
	}
	return form
}

func formString(r *http.Request, key string) *string {
	var values []string
	if r.MultipartForm != nil {
		values = r.MultipartForm.Value[key]
	}
	if len(values) == 0 {
		values = r.PostForm[key]
	}
	if len(values) == 0 {
		return nil
	}
	v := values[0]
	return &v
}

func readImage(r *http.Request) (*storage.ImageUpload, error) {
	file, header, err := r.FormFile(imageField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", common.ErrImageUpload, err)
	}
	defer file.Close()

	if header.Size > storage.MaxImageSize {
		return nil, storage.ErrImageTooLarge
	}
	data, err := io.ReadAll(io.LimitReader(file, storage.MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read image: %v", common.ErrImageUpload, err)
	}
	if len(data) > storage.MaxImageSize {
		return nil, storage.ErrImageTooLarge
	}
	return &storage.ImageUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func bodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return storage.ErrImageTooLarge
	}
	return fmt.Errorf("%w: %v", common.ErrBadRequest, err)
}

var (
	decimalInt   = regexp.MustCompile(`^[+-]?[0-9]+$`)
	decimalFloat = regexp.MustCompile(`^[+-]?([0-9]+(\.[0-9]*)?|\.[0-9]+)([eE][+-]?[0-9]+)?$`)
)

// toFloat accepts a JSON number or a base-10 numeric string. Absent or blank means not provided.
func toFloat(field string, v any) (*float64, error) {
	v, present, err := numericInput(field, "a number", v)
	if !present || err != nil {
		return nil, err
	}
	if s, ok := v.(string); ok {
		if !decimalFloat.MatchString(s) {
			return nil, notNumeric(field, "a number")
		}
		f, parseErr := strconv.ParseFloat(s, 64)
		if parseErr != nil {
			return nil, notNumeric(field, "a number")
		}
		return &f, nil
	}
	f, castErr := cast.ToFloat64E(v)
	if castErr != nil {
		return nil, notNumeric(field, "a number")
	}
	return &f, nil
}

// toInt accepts a whole JSON number or a base-10 integer string. "010" is ten.
func toInt(field string, v any) (*int, error) {
	v, present, err := numericInput(field, "a whole number", v)
	if !present || err != nil {
		return nil, err
	}
	if s, ok := v.(string); ok {
		if !decimalInt.MatchString(s) {
			return nil, notNumeric(field, "a whole number")
		}
		n, parseErr := strconv.ParseInt(s, 10, 64)
		if parseErr != nil {
			return nil, notNumeric(field, "a whole number")
		}
		i := int(n)
		return &i, nil
	}
	// cast truncates floats and wraps out-of-range ones.
	if f, ok := v.(float64); ok && (f != math.Trunc(f) || math.Abs(f) >= math.MaxInt64) {
		return nil, notNumeric(field, "a whole number")
	}
	n, castErr := cast.ToIntE(v)
	if castErr != nil {
		return nil, notNumeric(field, "a whole number")
	}
	return &n, nil
}

func numericInput(field, kind string, v any) (any, bool, error) {
	switch t := v.(type) {
	case nil:
		return nil, false, nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil, false, nil
		}
		return s, true, nil
	case bool, map[string]any, []any:
		return nil, true, notNumeric(field, kind)
	}
	return v, true, nil
}

func notNumeric(field, kind string) error {
	label := strings.ToUpper(field[:1]) + field[1:]
	return common.NewValidationError(field, fmt.Sprintf("%s must be %s", label, kind))
}
