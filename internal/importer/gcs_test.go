package importer

import "testing"

func TestSplitGCSURI(t *testing.T) {
	tests := []struct {
		name       string
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{
			name:       "bucket and object",
			uri:        "gs://imports/2019/transactions.csv",
			wantBucket: "imports",
			wantObject: "2019/transactions.csv",
		},
		{
			name:       "object at bucket root",
			uri:        "gs://imports/transactions.csv",
			wantBucket: "imports",
			wantObject: "transactions.csv",
		},
		{
			name:    "missing object",
			uri:     "gs://imports",
			wantErr: true,
		},
		{
			name:    "empty bucket",
			uri:     "gs:///transactions.csv",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, object, err := splitGCSURI(tt.uri)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("splitGCSURI(%q) failed: %v", tt.uri, err)
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("splitGCSURI(%q) = (%q, %q), want (%q, %q)",
					tt.uri, bucket, object, tt.wantBucket, tt.wantObject)
			}
		})
	}
}
