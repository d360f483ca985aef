package secrets

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
)

// SSMResolver resolves ssm:// references from AWS Systems Manager
// Parameter Store through the aws CLI, so whatever credential chain the
// CLI is configured with (profiles, SSO, instance roles) applies
// unchanged.
type SSMResolver struct{}

// Scheme returns "ssm".
func (r *SSMResolver) Scheme() string {
	return "ssm"
}

// Resolve fetches a parameter with `aws ssm get-parameter`. SecureString
// parameters are decrypted server-side.
func (r *SSMResolver) Resolve(ctx context.Context, reference string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if _, err := exec.LookPath("aws"); err != nil {
		return "", &BackendError{
			Backend: "AWS SSM",
			Reason:  "aws CLI not found in PATH",
			Fix:     "Install from https://aws.amazon.com/cli/",
		}
	}

	region, paramPath, err := parseSSMReference(reference)
	if err != nil {
		return "", err
	}

	args := []string{
		"ssm", "get-parameter",
		"--name", paramPath,
		"--with-decryption",
		"--query", "Parameter.Value",
		"--output", "text",
	}
	if region != "" {
		args = append(args, "--region", region)
	}

	cmd := exec.CommandContext(ctx, "aws", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", classifyAWSError(stderr.String(), reference, paramPath)
	}

	return strings.TrimSpace(stdout.String()), nil
}

// parseSSMReference splits an ssm:// reference into region and parameter
// path. The region is optional:
//
//	ssm:///prod/db/url        -> ("", "/prod/db/url")
//	ssm://eu-west-1/prod/key  -> ("eu-west-1", "/prod/key")
func parseSSMReference(ref string) (region, path string, err error) {
	rest, ok := strings.CutPrefix(ref, "ssm://")
	if !ok {
		return "", "", &InvalidReferenceError{
			Reference: ref,
			Reason:    "expected ssm:// scheme",
		}
	}

	// A leading slash means no region segment.
	if strings.HasPrefix(rest, "/") {
		return "", rest, nil
	}

	slash := strings.Index(rest, "/")
	if slash < 0 {
		return "", "", &InvalidReferenceError{
			Reference: ref,
			Reason:    "parameter path must start with /",
		}
	}
	return rest[:slash], rest[slash:], nil
}

// classifyAWSError maps aws CLI stderr output to a typed error, keyed on
// the AWS error codes embedded in the message.
func classifyAWSError(stderr, reference, paramPath string) error {
	msg := strings.TrimSpace(stderr)

	switch {
	case strings.Contains(msg, "ParameterNotFound"):
		return &NotFoundError{Reference: reference, Backend: "AWS SSM"}

	case strings.Contains(msg, "AccessDeniedException"):
		return &BackendError{
			Backend:   "AWS SSM",
			Reference: reference,
			Reason:    "access denied",
			Fix:       "Check IAM permissions for ssm:GetParameter on " + paramPath,
		}

	case strings.Contains(msg, "ExpiredToken"):
		return &BackendError{
			Backend:   "AWS SSM",
			Reference: reference,
			Reason:    "AWS credentials expired",
			Fix:       "Run: aws sso login\nOr refresh your credentials.",
		}

	case strings.Contains(msg, "Unable to locate credentials"):
		return &BackendError{
			Backend:   "AWS SSM",
			Reference: reference,
			Reason:    "no AWS credentials found",
			Fix:       "Configure credentials:\n  aws configure\n  Or set AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY\n  Or run: aws sso login",
		}

	case strings.Contains(msg, "Could not connect to the endpoint URL"):
		return &BackendError{
			Backend:   "AWS SSM",
			Reference: reference,
			Reason:    "could not connect to AWS endpoint",
			Fix:       "Check your region setting and network connectivity.",
		}
	}

	return &BackendError{
		Backend:   "AWS SSM",
		Reference: reference,
		Reason:    msg,
	}
}

func init() {
	Register(&SSMResolver{})
}
