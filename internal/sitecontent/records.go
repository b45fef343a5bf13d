package sitecontent

import (
	"sort"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/keithlinneman/linnemanlabs-content/internal/loader"
	"github.com/keithlinneman/linnemanlabs-content/internal/schema"
	"github.com/keithlinneman/linnemanlabs-content/internal/xerrors"
)

// AboutPage is the record of the about collection.
type AboutPage struct {
	ID          string           `json:"id" mapstructure:"-"`
	Title       string           `json:"title" mapstructure:"title"`
	Description string           `json:"description" mapstructure:"description"`
	UpdatedDate *time.Time       `json:"updatedDate,omitempty" mapstructure:"updatedDate"`
	HeroImage   *schema.ImageRef `json:"heroImage,omitempty" mapstructure:"heroImage"`
	HTML        string           `json:"html" mapstructure:"-"`
}

// BlogPost is the record of the blog collection.
type BlogPost struct {
	ID          string           `json:"id" mapstructure:"-"`
	Title       string           `json:"title" mapstructure:"title"`
	Description string           `json:"description" mapstructure:"description"`
	PubDate     time.Time        `json:"pubDate" mapstructure:"pubDate"`
	UpdatedDate *time.Time       `json:"updatedDate,omitempty" mapstructure:"updatedDate"`
	HeroImage   *schema.ImageRef `json:"heroImage,omitempty" mapstructure:"heroImage"`
	HTML        string           `json:"html,omitempty" mapstructure:"-"`
}

// Project is the record of the projects collection. PubDate orders
// projects and is not shown.
type Project struct {
	ID          string           `json:"id" mapstructure:"-"`
	Title       string           `json:"title" mapstructure:"title"`
	Description string           `json:"description" mapstructure:"description"`
	PubDate     time.Time        `json:"-" mapstructure:"pubDate"`
	HeroImage   *schema.ImageRef `json:"heroImage,omitempty" mapstructure:"heroImage"`
	HTML        string           `json:"html,omitempty" mapstructure:"-"`
}

func decode(data map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      out,
		TagName:     "mapstructure",
		ErrorUnused: false,
	})
	if err != nil {
		return err
	}
	return dec.Decode(data)
}

// DecodeAbout converts an about entry into its record.
func DecodeAbout(e loader.Entry) (AboutPage, error) {
	var p AboutPage
	if err := decode(e.Data, &p); err != nil {
		return AboutPage{}, xerrors.Wrapf(err, "decode about entry %q", e.ID)
	}
	p.ID, p.HTML = e.ID, e.HTML
	return p, nil
}

// DecodeBlogPost converts a blog entry into its record.
func DecodeBlogPost(e loader.Entry) (BlogPost, error) {
	var p BlogPost
	if err := decode(e.Data, &p); err != nil {
		return BlogPost{}, xerrors.Wrapf(err, "decode blog entry %q", e.ID)
	}
	p.ID, p.HTML = e.ID, e.HTML
	return p, nil
}

// DecodeProject converts a projects entry into its record.
func DecodeProject(e loader.Entry) (Project, error) {
	var p Project
	if err := decode(e.Data, &p); err != nil {
		return Project{}, xerrors.Wrapf(err, "decode project entry %q", e.ID)
	}
	p.ID, p.HTML = e.ID, e.HTML
	return p, nil
}

// BlogPosts decodes entries and returns them newest first. Posts sharing a
// pubDate are ordered by ID.
func BlogPosts(entries []loader.Entry) ([]BlogPost, error) {
	out := make([]BlogPost, 0, len(entries))
	for _, e := range entries {
		p, err := DecodeBlogPost(e)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return newer(out[i].PubDate, out[j].PubDate, out[i].ID, out[j].ID)
	})
	return out, nil
}

// ProjectList decodes entries and returns them newest first.
func ProjectList(entries []loader.Entry) ([]Project, error) {
	out := make([]Project, 0, len(entries))
	for _, e := range entries {
		p, err := DecodeProject(e)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return newer(out[i].PubDate, out[j].PubDate, out[i].ID, out[j].ID)
	})
	return out, nil
}

func newer(a, b time.Time, aID, bID string) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return aID < bID
}
