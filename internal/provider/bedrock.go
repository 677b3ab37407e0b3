// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/petar-djukic/gramgen/pkg/types"
)

const (
	bedrockName           = "bedrock"
	defaultBedrockTimeout = 300 * time.Second
	defaultMaxTokens      = 4096
)

// BedrockConfig configures the Bedrock adapter. Credentials come from the
// standard AWS chain; they are never logged.
type BedrockConfig struct {
	ModelID string        // Bedrock model ID (required)
	Region  string        // AWS region (required)
	Profile string        // AWS credential profile (optional)
	Timeout time.Duration // Per-call timeout (default 300s)
}

// BedrockAPI abstracts the Bedrock ConverseStream call for testing.
type BedrockAPI interface {
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

// Bedrock adapts AWS Bedrock's ConverseStream API. Bedrock has no native
// grammar-guided decoding; candidates must be validated by the caller.
type Bedrock struct {
	api     BedrockAPI
	modelID string
	timeout time.Duration
}

// NewBedrock creates the adapter using the standard AWS credential chain.
func NewBedrock(ctx context.Context, cfg BedrockConfig) (*Bedrock, error) {
	if cfg.ModelID == "" {
		return nil, fatalErr(bedrockName, errors.New("model ID is required"))
	}
	if cfg.Region == "" {
		return nil, fatalErr(bedrockName, errors.New("region is required"))
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fatalErr(bedrockName, fmt.Errorf("loading AWS config: %w", err))
	}

	return NewBedrockWithAPI(bedrockruntime.NewFromConfig(awsCfg), cfg), nil
}

// NewBedrockWithAPI creates the adapter with a pre-configured API
// implementation. Used for testing with mock clients.
func NewBedrockWithAPI(api BedrockAPI, cfg BedrockConfig) *Bedrock {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultBedrockTimeout
	}
	return &Bedrock{api: api, modelID: cfg.ModelID, timeout: timeout}
}

func (b *Bedrock) Name() string { return bedrockName }

func (b *Bedrock) SupportsGrammar() bool { return false }

// Submit sends one conversation turn and accumulates the streamed
// response. Errors are classified: throttling is transient, credential
// and model-resolution failures are fatal.
func (b *Bedrock) Submit(ctx context.Context, req SubmitRequest) (*Completion, error) {
	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	maxTokens := req.Params.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	input := &bedrockruntime.ConverseStreamInput{
		ModelId: aws.String(b.modelID),
		System: []brtypes.SystemContentBlock{
			&brtypes.SystemContentBlockMemberText{Value: req.System},
		},
		Messages: convertMessages(req.Messages),
		InferenceConfig: &brtypes.InferenceConfiguration{
			MaxTokens:   aws.Int32(int32(maxTokens)),
			Temperature: aws.Float32(req.Params.Temperature),
		},
	}

	output, err := b.api.ConverseStream(callCtx, input)
	if err != nil {
		return nil, b.classify(err)
	}

	completion, err := consumeStream(callCtx, output.GetStream())
	if err != nil {
		return nil, b.classify(err)
	}
	return completion, nil
}

// classify maps Bedrock errors onto the transient/fatal taxonomy.
func (b *Bedrock) classify(err error) error {
	var throttle *brtypes.ThrottlingException
	if errors.As(err, &throttle) {
		return transientErr(bedrockName, err)
	}
	var unavailable *brtypes.ServiceUnavailableException
	if errors.As(err, &unavailable) {
		return transientErr(bedrockName, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return transientErr(bedrockName, fmt.Errorf("request timed out after %s", b.timeout))
	}

	var accessDenied *brtypes.AccessDeniedException
	if errors.As(err, &accessDenied) {
		return fatalErr(bedrockName, errors.New("credential or permission issue"))
	}
	var notFound *brtypes.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return fatalErr(bedrockName, fmt.Errorf("model not found: %s", b.modelID))
	}
	var validation *brtypes.ValidationException
	if errors.As(err, &validation) {
		return fatalErr(bedrockName, err)
	}

	return transientErr(bedrockName, err)
}

func convertMessages(messages []types.Message) []brtypes.Message {
	out := make([]brtypes.Message, 0, len(messages))
	for _, m := range messages {
		role := brtypes.ConversationRoleUser
		if m.Role == types.RoleAssistant {
			role = brtypes.ConversationRoleAssistant
		}
		out = append(out, brtypes.Message{
			Role:    role,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: m.Content}},
		})
	}
	return out
}

// EventStream abstracts the Bedrock ConverseStream event stream for testing.
type EventStream interface {
	Events() <-chan brtypes.ConverseStreamOutput
	Close() error
	Err() error
}

// consumeStream reads events from a Bedrock ConverseStream and
// accumulates the full response text and token usage.
func consumeStream(ctx context.Context, stream EventStream) (*Completion, error) {
	var text strings.Builder
	completion := &Completion{}

	events := stream.Events()
	for {
		select {
		case <-ctx.Done():
			stream.Close()
			return nil, ctx.Err()

		case event, ok := <-events:
			if !ok {
				if err := stream.Err(); err != nil {
					return nil, err
				}
				completion.Text = text.String()
				return completion, nil
			}

			switch v := event.(type) {
			case *brtypes.ConverseStreamOutputMemberContentBlockDelta:
				if delta, ok := v.Value.Delta.(*brtypes.ContentBlockDeltaMemberText); ok {
					text.WriteString(delta.Value)
				}

			case *brtypes.ConverseStreamOutputMemberMetadata:
				if v.Value.Usage != nil {
					if v.Value.Usage.InputTokens != nil {
						completion.Usage.InputTokens = int(*v.Value.Usage.InputTokens)
					}
					if v.Value.Usage.OutputTokens != nil {
						completion.Usage.OutputTokens = int(*v.Value.Usage.OutputTokens)
					}
				}
			}
		}
	}
}
