package bootstrap

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"

	"chorddht/internal/config"
	"chorddht/internal/ring"
)

// Route53Bootstrap discovers and publishes ring membership through SRV
// records in a Route53 hosted zone: every node upserts a record under its
// own hex id, and a joiner lists the zone for every SRV record under the
// configured domain suffix.
type Route53Bootstrap struct {
	client       *route53.Client
	hostedZoneID string
	domainSuffix string
	ttl          int64
}

func NewRoute53Bootstrap(cfg config.Route53Config) (*Route53Bootstrap, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &Route53Bootstrap{
		client:       route53.NewFromConfig(awsCfg),
		hostedZoneID: cfg.HostedZoneID,
		domainSuffix: strings.TrimSuffix(cfg.DomainSuffix, "."),
		ttl:          cfg.TTL,
	}, nil
}

func (r *Route53Bootstrap) recordName(id ring.ID) string {
	return fmt.Sprintf("%s.%s.", id.ToHexString(false), r.domainSuffix)
}

// Discover lists every SRV record under the configured domain suffix and
// resolves each target hostname to its current IPs.
func (r *Route53Bootstrap) Discover(ctx context.Context) ([]string, error) {
	var endpoints []string

	input := &route53.ListResourceRecordSetsInput{HostedZoneId: aws.String(r.hostedZoneID)}
	paginator := route53.NewListResourceRecordSetsPaginator(r.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list resource record sets: %w", err)
		}
		for _, rrset := range page.ResourceRecordSets {
			if rrset.Type != types.RRTypeSrv {
				continue
			}
			if !strings.HasSuffix(strings.TrimSuffix(*rrset.Name, "."), r.domainSuffix) {
				continue
			}
			for _, rr := range rrset.ResourceRecords {
				var prio, weight, port int
				var target string
				if _, err := fmt.Sscanf(*rr.Value, "%d %d %d %s", &prio, &weight, &port, &target); err != nil {
					continue
				}
				target = strings.TrimSuffix(target, ".")
				ips, err := net.LookupHost(target)
				if err != nil {
					continue
				}
				for _, ip := range ips {
					endpoints = append(endpoints, fmt.Sprintf("%s:%d", ip, port))
				}
			}
		}
	}
	return endpoints, nil
}

// Register upserts an SRV record pointing at self's address.
func (r *Route53Bootstrap) Register(ctx context.Context, self ring.Peer) error {
	host, port, err := net.SplitHostPort(self.Addr)
	if err != nil {
		return fmt.Errorf("split advertised address: %w", err)
	}
	_, err = r.client.ChangeResourceRecordSets(ctx, &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(r.hostedZoneID),
		ChangeBatch: &types.ChangeBatch{
			Changes: []types.Change{{
				Action: types.ChangeActionUpsert,
				ResourceRecordSet: &types.ResourceRecordSet{
					Name: aws.String(r.recordName(self.ID)),
					Type: types.RRTypeSrv,
					TTL:  aws.Int64(r.ttl),
					ResourceRecords: []types.ResourceRecord{
						{Value: aws.String(fmt.Sprintf("0 0 %s %s.", port, host))},
					},
				},
			}},
		},
	})
	return err
}

// Deregister removes self's SRV record.
func (r *Route53Bootstrap) Deregister(ctx context.Context, self ring.Peer) error {
	host, port, err := net.SplitHostPort(self.Addr)
	if err != nil {
		return fmt.Errorf("split advertised address: %w", err)
	}
	_, err = r.client.ChangeResourceRecordSets(ctx, &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(r.hostedZoneID),
		ChangeBatch: &types.ChangeBatch{
			Changes: []types.Change{{
				Action: types.ChangeActionDelete,
				ResourceRecordSet: &types.ResourceRecordSet{
					Name: aws.String(r.recordName(self.ID)),
					Type: types.RRTypeSrv,
					TTL:  aws.Int64(r.ttl),
					ResourceRecords: []types.ResourceRecord{
						{Value: aws.String(fmt.Sprintf("0 0 %s %s.", port, host))},
					},
				},
			}},
		},
	})
	return err
}
