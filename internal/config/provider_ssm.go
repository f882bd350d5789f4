package config

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// GetParameters accepts at most 10 names per request.
const ssmMaxBatchSize = 10

type ssmClient interface {
	GetParameters(ctx context.Context, params *ssm.GetParametersInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersOutput, error)
}

// SSMProvider reads SecureString parameters from Parameter Store. The
// thumbnail functions use it in every environment except local.
type SSMProvider struct {
	region string
	client ssmClient
}

// NewSSMProvider returns a provider for region. No AWS call is made until
// the first lookup.
func NewSSMProvider(region string) *SSMProvider {
	return &SSMProvider{region: region}
}

func newSSMProviderWithClient(region string, client ssmClient) *SSMProvider {
	return &SSMProvider{region: region, client: client}
}

// MissingParametersError lists every parameter Parameter Store did not know.
type MissingParametersError struct {
	Names []string
}

func (e *MissingParametersError) Error() string {
	return "SSM parameters not found: " + strings.Join(e.Names, ", ")
}

// GetParametersBatch resolves keys with decryption, ten at a time. All chunks
// are requested before unknown names are reported, so one error names every
// missing parameter.
func (p *SSMProvider) GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error) {
	result := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	if p.client == nil {
		cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(p.region))
		if err != nil {
			return nil, fmt.Errorf("loading AWS config for SSM (region=%s): %w", p.region, err)
		}
		p.client = ssm.NewFromConfig(cfg)
	}

	var missing []string
	for start := 0; start < len(keys); start += ssmMaxBatchSize {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during SSM parameter retrieval: %w", err)
		}

		end := min(start+ssmMaxBatchSize, len(keys))
		out, err := p.client.GetParameters(ctx, &ssm.GetParametersInput{
			Names:          keys[start:end],
			WithDecryption: aws.Bool(true),
		})
		if err != nil {
			return nil, fmt.Errorf("SSM GetParameters failed (keys %d-%d of %d): %w", start, end-1, len(keys), err)
		}

		missing = append(missing, out.InvalidParameters...)
		for _, param := range out.Parameters {
			if param.Name != nil {
				result[*param.Name] = aws.ToString(param.Value)
			}
		}
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &MissingParametersError{Names: missing}
	}
	return result, nil
}
