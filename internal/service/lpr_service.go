package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/sirupsen/logrus"
)

var ErrPlateNotFound = errors.New("no licence plate recognised in image")
var ErrLPRUnavailable = errors.New("plate recognition is not configured")

// TextDetector is the part of the Rekognition client used for plate recognition.
type TextDetector interface {
	DetectText(ctx context.Context, params *rekognition.DetectTextInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error)
}

// Registration marks such as MH12AB1234 or DL3C1234, after spaces, dots and dashes are removed.
var plateRegex = regexp.MustCompile(`^[A-Z]{2}[0-9]{1,2}[A-Z]{0,3}[0-9]{4}$`)

var plateNoise = strings.NewReplacer(" ", "", ".", "", "-", "")

type LPRService struct {
	detector TextDetector
	logger   *logrus.Logger
}

func NewLPRService(detector TextDetector, logger *logrus.Logger) *LPRService {
	return &LPRService{detector: detector, logger: logger}
}

// RecognizePlate returns the highest-confidence text block that looks like a plate.
func (s *LPRService) RecognizePlate(ctx context.Context, imageBytes []byte) (string, float32, error) {
	if s.detector == nil {
		return "", 0, ErrLPRUnavailable
	}

	result, err := s.detector.DetectText(ctx, &rekognition.DetectTextInput{
		Image: &types.Image{Bytes: imageBytes},
	})
	if err != nil {
		return "", 0, fmt.Errorf("rekognition DetectText: %w", err)
	}
	s.logger.WithField("blocks", len(result.TextDetections)).Debug("Rekognition returned text blocks")

	var plate string
	var maxConfidence float32
	for _, detection := range result.TextDetections {
		if detection.Type != types.TextTypesLine && detection.Type != types.TextTypesWord {
			continue
		}
		if detection.DetectedText == nil || detection.Confidence == nil {
			continue
		}
		candidate := strings.ToUpper(plateNoise.Replace(*detection.DetectedText))
		if plateRegex.MatchString(candidate) && *detection.Confidence > maxConfidence {
			plate = candidate
			maxConfidence = *detection.Confidence
		}
	}

	if plate == "" {
		return "", 0, ErrPlateNotFound
	}
	s.logger.WithFields(logrus.Fields{"plate": plate, "confidence": maxConfidence}).Info("Plate recognised")
	return plate, maxConfidence, nil
}
