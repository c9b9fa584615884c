package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"exoplanet_service/internal/domain/model"

	"github.com/go-playground/validator/v10"
)

type XGBoostParams struct {
	LearningRate float64 `json:"learningRate" validate:"gte=0.01,lte=0.3"`
	NumTrees     int     `json:"numTrees" validate:"gte=50,lte=500"`
	MaxDepth     int     `json:"maxDepth" validate:"gte=3,lte=10"`
}

type DNNParams struct {
	NumLayers       int    `json:"numLayers" validate:"gte=2,lte=8"`
	NeuronsPerLayer int    `json:"neuronsPerLayer" validate:"gte=32,lte=256"`
	Activation      string `json:"activation" validate:"oneof=relu tanh sigmoid"`
}

// DefaultHyperparameters returns the settings used for keys a request leaves out.
func DefaultHyperparameters(mt model.ModelType) interface{} {
	switch mt {
	case model.ModelDNN:
		return &DNNParams{NumLayers: 4, NeuronsPerLayer: 128, Activation: "relu"}
	default:
		return &XGBoostParams{LearningRate: 0.1, NumTrees: 100, MaxDepth: 6}
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateHyperparameters checks raw settings for a model type and returns
// them with defaults filled in. Unknown keys are rejected.
func ValidateHyperparameters(mt model.ModelType, raw map[string]interface{}) (map[string]interface{}, error) {
	params := DefaultHyperparameters(mt)

	if len(raw) > 0 {
		data, err := json.Marshal(raw)
		if err != nil {
			return nil, model.Invalid("hyperparameters", "%v", err)
		}
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(params); err != nil {
			return nil, decodeError(err)
		}
	}

	if err := validate.Struct(params); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return nil, model.Invalid("hyperparameters."+fe.Field(), "%v %s", fe.Value(), ruleFor(fe))
		}
		return nil, fmt.Errorf("failed to validate hyperparameters: %w", err)
	}

	out := make(map[string]interface{})
	data, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode hyperparameters: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to encode hyperparameters: %w", err)
	}
	return out, nil
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return model.Invalid("hyperparameters."+typeErr.Field, "must be a %s", typeErr.Type)
	}
	msg := err.Error()
	if strings.HasPrefix(msg, "json: unknown field ") {
		name := strings.Trim(strings.TrimPrefix(msg, "json: unknown field "), `"`)
		return model.Invalid("hyperparameters."+name, "unknown hyperparameter")
	}
	return model.Invalid("hyperparameters", "%v", err)
}

func ruleFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	}
	return "failed " + fe.Tag()
}
