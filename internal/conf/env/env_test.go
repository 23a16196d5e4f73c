package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type myDuration time.Duration

// UnmarshalEnv implements env.Unmarshaler.
func (d *myDuration) UnmarshalEnv(_ string, v string) error {
	du, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*d = myDuration(du)
	return nil
}

type testStruct struct {
	MyString   string     `json:"myString"`
	MyInt      int        `json:"myInt"`
	MyInt64    int64      `json:"myInt64"`
	MyFloat    float64    `json:"myFloat"`
	MyBool     bool       `json:"myBool"`
	MyDuration myDuration `json:"myDuration"`
	Unset      string     `json:"unset"`
	private    string
}

func TestLoad(t *testing.T) {
	env := map[string]string{
		"MY_PREFIX_MYSTRING":   "testcontent",
		"MY_PREFIX_MYINT":      "123",
		"MY_PREFIX_MYINT64":    "-9000000000",
		"MY_PREFIX_MYFLOAT":    "15.2",
		"MY_PREFIX_MYBOOL":     "yes",
		"MY_PREFIX_MYDURATION": "22s",
	}

	s := testStruct{
		Unset:   "default",
		private: "kept",
	}
	err := loadWithEnv(env, "MY_PREFIX", &s)
	require.NoError(t, err)

	require.Equal(t, testStruct{
		MyString:   "testcontent",
		MyInt:      123,
		MyInt64:    -9000000000,
		MyFloat:    15.2,
		MyBool:     true,
		MyDuration: myDuration(22 * time.Second),
		Unset:      "default",
		private:    "kept",
	}, s)
}

func TestLoadErrors(t *testing.T) {
	for _, ca := range []struct {
		name string
		env  map[string]string
		err  string
	}{
		{
			"invalid int",
			map[string]string{"MY_PREFIX_MYINT": "abc"},
			`MY_PREFIX_MYINT: strconv.ParseInt: parsing "abc": invalid syntax`,
		},
		{
			"invalid bool",
			map[string]string{"MY_PREFIX_MYBOOL": "maybe"},
			"MY_PREFIX_MYBOOL: invalid value 'maybe'",
		},
		{
			"invalid duration",
			map[string]string{"MY_PREFIX_MYDURATION": "abc"},
			`MY_PREFIX_MYDURATION: time: invalid duration "abc"`,
		},
	} {
		t.Run(ca.name, func(t *testing.T) {
			var s testStruct
			err := loadWithEnv(ca.env, "MY_PREFIX", &s)
			require.EqualError(t, err, ca.err)
		})
	}
}
